// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package daemon

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mtmn/plants-go/pkg/bluez"
	"github.com/mtmn/plants-go/pkg/config"
	"github.com/mtmn/plants-go/pkg/status"
)

// sourceRestartDelay spaces restarts after a source's Run returns with
// an error, so a broken Bluetooth stack does not spin.
const sourceRestartDelay = 5 * time.Second

// Daemon runs the three sources against one store and publisher.
type Daemon struct {
	store *status.Store
	pub   status.Publisher
	cfg   *config.Config
	log   logrus.FieldLogger
}

// New assembles a daemon around an existing store. The publisher is
// typically the D-Bus service, which answers GetStatus from the same
// store; a no-op publisher is a valid wiring for tests.
func New(store *status.Store, cfg *config.Config, pub status.Publisher, log logrus.FieldLogger) *Daemon {
	return &Daemon{store: store, pub: pub, cfg: cfg, log: log}
}

// source is one indefinitely-running data source.
type source interface {
	Run(ctx context.Context, conn *bluez.Conn) error
}

// Run publishes the initial empty snapshot and runs every source until
// ctx is cancelled. No source terminates the daemon: a source whose Run
// returns an error is restarted after a delay, and a source with
// nothing configured simply stops doing work.
func (d *Daemon) Run(ctx context.Context) error {
	d.pub.Publish(d.store.Snapshot())

	sources := []struct {
		name string
		src  source
	}{
		{"generic", NewGenericDeviceSource(d.store, d.pub, d.cfg, d.log)},
		{"airpods", NewAirPodsSource(d.store, d.pub, d.log)},
		{"pbp", NewPBPSource(d.store, d.pub, d.cfg, d.log)},
	}
	for _, s := range sources {
		go d.supervise(ctx, s.name, s.src)
	}

	<-ctx.Done()
	return ctx.Err()
}

// supervise runs one source with its own BlueZ connection, restarting it
// on failure. Sources that return nil are done for good (nothing
// configured for them).
func (d *Daemon) supervise(ctx context.Context, name string, src source) {
	log := d.log.WithField("source", name)
	for ctx.Err() == nil {
		conn, err := bluez.Connect()
		if err == nil {
			err = src.Run(ctx, conn)
			conn.Close()
		}
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Error("source failed, restarting")
		select {
		case <-ctx.Done():
		case <-time.After(sourceRestartDelay):
		}
	}
}
