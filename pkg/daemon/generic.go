// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package daemon

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mtmn/plants-go/pkg/bluez"
	"github.com/mtmn/plants-go/pkg/config"
	"github.com/mtmn/plants-go/pkg/status"
)

// Generic source timing.
const (
	pollInterval    = 30 * time.Second
	eventDebounce   = 500 * time.Millisecond
	propertyTimeout = 2 * time.Second
)

// DeviceReader is the per-device OS surface the generic source needs.
// The production implementation is backed by BlueZ.
type DeviceReader interface {
	Connected(ctx context.Context, addr string) (bool, error)
	BatteryPercentage(ctx context.Context, addr string) (uint8, error)
}

// bluezDeviceReader reads connectivity and battery through BlueZ.
type bluezDeviceReader struct {
	conn    *bluez.Conn
	adapter *bluez.Adapter
}

func (r *bluezDeviceReader) Connected(ctx context.Context, addr string) (bool, error) {
	return r.adapter.Device(addr).Connected(ctx)
}

func (r *bluezDeviceReader) BatteryPercentage(ctx context.Context, addr string) (uint8, error) {
	return r.conn.BatteryPercentage(ctx, r.adapter.Name, addr)
}

// GenericDeviceSource maintains the devices field-group for every
// configured peripheral of type "bluetooth". Each recompute replaces
// the list wholesale and publishes unconditionally; this source has no
// dedup gate.
type GenericDeviceSource struct {
	store *status.Store
	pub   status.Publisher
	cfg   *config.Config
	log   logrus.FieldLogger
}

// NewGenericDeviceSource wires the source to the store and publisher.
func NewGenericDeviceSource(store *status.Store, pub status.Publisher, cfg *config.Config, log logrus.FieldLogger) *GenericDeviceSource {
	return &GenericDeviceSource{store: store, pub: pub, cfg: cfg, log: log.WithField("source", "generic")}
}

// Run recomputes the device list on a fixed poll interval and on adapter
// events, debounced. With no configured devices the source does no work.
func (s *GenericDeviceSource) Run(ctx context.Context, conn *bluez.Conn) error {
	if len(s.cfg.Devices) == 0 {
		s.log.Info("no generic devices configured")
		return nil
	}

	adapter, err := conn.DefaultAdapter(ctx)
	if err != nil {
		return err
	}
	if err := adapter.SetPowered(true); err != nil {
		s.log.WithError(err).Warn("could not power adapter")
	}

	events, err := adapter.Events(ctx)
	if err != nil {
		return err
	}

	reader := &bluezDeviceReader{conn: conn, adapter: adapter}
	s.Recompute(ctx, reader)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var lastEventRun time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Recompute(ctx, reader)
		case _, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if time.Since(lastEventRun) < eventDebounce {
				continue
			}
			lastEventRun = time.Now()
			s.Recompute(ctx, reader)
		}
	}
}

// Recompute rebuilds the device list from scratch, in lexical device
// name order, and publishes the merged snapshot. A device appears only
// when it is connected and its battery percentage is readable.
func (s *GenericDeviceSource) Recompute(ctx context.Context, reader DeviceReader) {
	var devices []status.Device

	for _, name := range s.cfg.DeviceNames() {
		dc := s.cfg.Devices[name]
		if dc.DeviceType != "bluetooth" {
			s.log.WithField("device", name).Debug("skipping non-bluetooth device")
			continue
		}
		if _, err := net.ParseMAC(dc.MAC); err != nil {
			s.log.WithField("device", name).WithError(err).Warn("invalid MAC address")
			continue
		}

		connCtx, cancel := context.WithTimeout(ctx, propertyTimeout)
		connected, err := reader.Connected(connCtx, dc.MAC)
		cancel()
		if err != nil || !connected {
			continue
		}

		battCtx, cancel := context.WithTimeout(ctx, propertyTimeout)
		pct, err := reader.BatteryPercentage(battCtx, dc.MAC)
		cancel()
		if err != nil {
			// No Battery1 interface; the device is simply omitted.
			s.log.WithField("device", name).WithError(err).Trace("battery unreadable")
			continue
		}

		devices = append(devices, status.Device{
			Name:    name,
			Battery: pct,
			Text:    dc.Text,
			Status:  status.Discharging,
		})
	}

	merged := s.store.ApplyDevices(status.DeviceListUpdate{Devices: devices})
	s.pub.Publish(merged)
}
