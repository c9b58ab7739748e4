// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package daemon

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mtmn/plants-go/pkg/bluez"
	"github.com/mtmn/plants-go/pkg/config"
	"github.com/mtmn/plants-go/pkg/pbp"
	"github.com/mtmn/plants-go/pkg/status"
)

// PBP source timing.
const (
	superviseInterval   = 5 * time.Second
	lookupTimeout       = 2 * time.Second
	resolveTimeout      = 5 * time.Second
	profileRetryDelay   = 1 * time.Second
	profileMaxTries     = 3
	runtimeStreamBuffer = 16
	publishQueueDepth   = 8
)

// PBPSource streams runtime battery/placement info from the single
// configured buds peripheral over the vendor RPC protocol. It shares
// field ownership with AirPodsSource; the two are never configured at
// the same time.
type PBPSource struct {
	store *status.Store
	pub   status.Publisher
	cfg   *config.Config
	log   logrus.FieldLogger
}

// NewPBPSource wires the source to the store and publisher.
func NewPBPSource(store *status.Store, pub status.Publisher, cfg *config.Config, log logrus.FieldLogger) *PBPSource {
	return &PBPSource{store: store, pub: pub, cfg: cfg, log: log.WithField("source", "pbp")}
}

// Run evaluates connectivity every few seconds and streams while the
// buds stay connected. Without a buds entry the source does no work.
func (s *PBPSource) Run(ctx context.Context, conn *bluez.Conn) error {
	if s.cfg.Buds == nil {
		s.log.Info("no buds configured")
		return nil
	}
	mac := s.cfg.Buds.MAC

	for {
		if s.connected(ctx, conn, mac) {
			if err := s.stream(ctx, conn, mac); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Error("stream error")
			}
		} else {
			s.SkipCycle()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(superviseInterval):
		}
	}
}

// SkipCycle publishes with stale buds readings cleared. The metadata
// guard protects an active AirPods session from being clobbered.
func (s *PBPSource) SkipCycle() {
	s.pub.Publish(s.store.ClearEarbudIfAnonymous())
}

// connected checks adapter and device state with bounded lookups.
func (s *PBPSource) connected(ctx context.Context, conn *bluez.Conn, mac string) bool {
	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	adapter, err := conn.DefaultAdapter(lctx)
	if err != nil {
		return false
	}
	connected, err := adapter.Device(mac).Connected(lctx)
	return err == nil && connected
}

// stream establishes the RFCOMM rendezvous and runs one RPC session.
func (s *PBPSource) stream(ctx context.Context, conn *bluez.Conn, mac string) error {
	adapter, err := conn.DefaultAdapter(ctx)
	if err != nil {
		return err
	}

	profile, err := conn.RegisterProfile(pbp.ServiceUUID.String())
	if err != nil {
		return err
	}
	defer profile.Unregister()

	stream, err := s.establish(ctx, adapter, profile, mac)
	if err != nil {
		return err
	}
	s.log.WithField("address", mac).Debug("RFCOMM connected")

	return s.RunSession(ctx, stream)
}

// establish performs the profile rendezvous: an explicit ConnectProfile
// call, retried a few times, racing the profile framework's inbound
// request for the target address. Requests from other addresses are
// rejected.
func (s *PBPSource) establish(ctx context.Context, adapter *bluez.Adapter, profile *bluez.Profile, mac string) (io.ReadWriteCloser, error) {
	device := adapter.Device(mac)

	connectErr := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < profileMaxTries; i++ {
			if err = device.ConnectProfile(ctx, pbp.ServiceUUID.String()); err == nil {
				break
			}
			select {
			case <-ctx.Done():
				connectErr <- ctx.Err()
				return
			case <-time.After(profileRetryDelay):
			}
		}
		connectErr <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-connectErr:
			if err != nil {
				return nil, err
			}
			// Connected; the stream still arrives as a request.
			connectErr = nil
		case req, ok := <-profile.Requests:
			if !ok {
				return nil, errors.New("profile request channel closed")
			}
			if req.Address != mac {
				req.Reject()
				continue
			}
			return req.Accept(), nil
		}
	}
}

// RunSession drives one RPC session over an established stream: resolve
// the service channel, subscribe to runtime info, then fan in the client
// read loop, the subscription and the publisher until the first of them
// ends. Losing branches are abandoned with the closed stream.
func (s *PBPSource) RunSession(ctx context.Context, stream io.ReadWriteCloser) error {
	defer stream.Close()

	client := pbp.NewClient(stream, s.log)
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run() }()

	rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	channel, err := pbp.ResolveChannel(rctx, client)
	cancel()
	if err != nil {
		return err
	}
	s.log.WithField("channel", channel).Debug("channel resolved")

	svc := pbp.NewService(client, channel)
	sub, err := svc.SubscribeRuntimeInfo(runtimeStreamBuffer)
	if err != nil {
		return err
	}
	s.log.Debug("subscribed to runtime info")

	// The decode callback is synchronous but publishing is not; a
	// bounded queue into one publisher task keeps updates ordered
	// without spawning per message.
	updates := make(chan *pbp.RuntimeInfo, publishQueueDepth)
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		for info := range updates {
			components, ears := info.ToStatus()
			merged := s.store.ApplyEarbud(status.EarbudUpdate{Components: components, Ear: ears})
			s.pub.Publish(merged)
		}
	}()
	defer func() {
		close(updates)
		<-pubDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErr:
			if err == nil {
				err = errors.New("client terminated unexpectedly")
			}
			return err
		case msg, ok := <-sub.C:
			if !ok {
				return errors.New("runtime info stream ended")
			}
			info, err := pbp.DecodeRuntimeInfo(msg.Payload)
			if err != nil {
				s.log.WithError(err).Trace("dropping runtime info message")
				continue
			}
			select {
			case updates <- info:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
