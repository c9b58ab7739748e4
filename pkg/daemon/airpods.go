// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package daemon wires the three battery data sources to the canonical
// status store and the publish transport.
package daemon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mtmn/plants-go/pkg/aap"
	"github.com/mtmn/plants-go/pkg/bluez"
	"github.com/mtmn/plants-go/pkg/status"
)

// AirPods source timing.
const (
	discoveryInterval = 5 * time.Second
	inProgressBackoff = 500 * time.Millisecond
	connectBackoff    = 100 * time.Millisecond
	airPodsReadChunk  = 1024
)

// AirPodsSource owns one RFCOMM session to a discovered earbud device
// and keeps the metadata, components and ear field-groups current.
type AirPodsSource struct {
	store *status.Store
	pub   status.Publisher
	log   logrus.FieldLogger
}

// NewAirPodsSource wires the source to the store and publisher.
func NewAirPodsSource(store *status.Store, pub status.Publisher, log logrus.FieldLogger) *AirPodsSource {
	return &AirPodsSource{store: store, pub: pub, log: log.WithField("source", "airpods")}
}

// Run discovers the device, registers the profile and serves sessions
// until ctx is cancelled. Transient failures reconnect; only losing the
// Bluetooth stack entirely returns an error.
func (s *AirPodsSource) Run(ctx context.Context, conn *bluez.Conn) error {
	adapter, err := conn.DefaultAdapter(ctx)
	if err != nil {
		return err
	}
	if err := adapter.SetPowered(true); err != nil {
		s.log.WithError(err).Warn("could not power adapter")
	}

	profile, err := conn.RegisterProfile(aap.ServiceUUID.String())
	if err != nil {
		return err
	}
	defer profile.Unregister()

	s.log.Info("scanning for AirPods")
	device, err := s.discover(ctx, adapter)
	if err != nil {
		return err
	}
	s.log.WithField("address", device.Address).Info("found AirPods")

	go s.maintainConnection(ctx, device)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-profile.Requests:
			if !ok {
				return errors.New("profile request channel closed")
			}
			s.HandleStream(req.Accept())
		}
	}
}

// discover scans known device addresses for the earbud service UUID
// every few seconds, indefinitely. Presence is assumed eventual.
func (s *AirPodsSource) discover(ctx context.Context, adapter *bluez.Adapter) (*bluez.Device, error) {
	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()

	for {
		addrs, err := adapter.DeviceAddresses(ctx)
		if err != nil {
			s.log.WithError(err).Debug("device enumeration failed")
		}
		for _, addr := range addrs {
			device := adapter.Device(addr)
			uuids, err := device.UUIDs(ctx)
			if err != nil {
				// UUIDs are often unavailable right after discovery.
				continue
			}
			for _, u := range uuids {
				if u == aap.ServiceUUID.String() {
					return device, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// maintainConnection retries ConnectProfile whenever the device reports
// a transition to connected, backing off longer while the stack says a
// connection is already in progress.
func (s *AirPodsSource) maintainConnection(ctx context.Context, device *bluez.Device) {
	if connected, err := device.Connected(ctx); err == nil && connected {
		s.connectProfile(ctx, device)
	}

	changes, err := device.ConnectedChanges(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not watch device connectivity")
		return
	}
	for connected := range changes {
		if connected {
			s.connectProfile(ctx, device)
		}
	}
}

func (s *AirPodsSource) connectProfile(ctx context.Context, device *bluez.Device) {
	for {
		err := device.ConnectProfile(ctx, aap.ServiceUUID.String())
		if err == nil || ctx.Err() != nil {
			return
		}
		backoff := connectBackoff
		if bluez.IsInProgress(err) {
			backoff = inProgressBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// HandleStream serves one RFCOMM session to completion, then clears the
// earbud field-group and publishes so stale readings do not outlive the
// session. The device list is never touched.
func (s *AirPodsSource) HandleStream(stream io.ReadWriteCloser) {
	session := newAirPodsSession(stream, s.store, s.pub, s.log)
	if err := session.run(); err != nil && !errors.Is(err, io.EOF) {
		s.log.WithError(err).Warn("session ended")
	} else {
		s.log.Info("session closed")
	}
	stream.Close()

	s.pub.Publish(s.store.ClearEarbud())
}

// sessionState tracks the handshake progression of one RFCOMM session.
type sessionState int

const (
	awaitingHandshakeAck sessionState = iota
	awaitingFeaturesAck
	streaming
	closed
)

// airPodsSession is one live RFCOMM session. It shadows the earbud
// field-group locally and pushes into the store only when the shadow's
// content hash changes.
type airPodsSession struct {
	stream io.ReadWriter
	store  *status.Store
	pub    status.Publisher
	log    logrus.FieldLogger

	state   sessionState
	primary aap.Pod
	shadow  status.Status

	frames       uint64
	unrecognized uint64
}

func newAirPodsSession(stream io.ReadWriter, store *status.Store, pub status.Publisher, log logrus.FieldLogger) *airPodsSession {
	return &airPodsSession{
		stream: stream,
		store:  store,
		pub:    pub,
		log:    log,
		shadow: status.New(),
	}
}

// run performs the handshake and serves frames until the stream fails or
// ends with a zero-byte read.
func (s *airPodsSession) run() error {
	defer func() {
		s.state = closed
		s.log.WithFields(logrus.Fields{
			"frames":       s.frames,
			"unrecognized": s.unrecognized,
		}).Debug("session counters")
	}()

	if _, err := s.stream.Write(aap.Handshake); err != nil {
		return err
	}

	for {
		frame, err := s.readFrame()
		if err != nil {
			return err
		}
		if err := s.handleFrame(frame); err != nil {
			return err
		}
	}
}

// readFrame accumulates chunks until a short read marks the frame
// boundary. A zero-byte read means the stream ended.
func (s *airPodsSession) readFrame() ([]byte, error) {
	var data []byte
	buf := make([]byte, airPodsReadChunk)
	for {
		n, err := s.stream.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, io.EOF
		}
		data = append(data, buf[:n]...)
		if n < len(buf) {
			return data, nil
		}
	}
}

func (s *airPodsSession) handleFrame(frame []byte) error {
	switch {
	case s.state == awaitingHandshakeAck && bytes.HasPrefix(frame, aap.HandshakeAck):
		s.state = awaitingFeaturesAck
		_, err := s.stream.Write(aap.SetSpecificFeatures)
		return err

	case s.state == awaitingFeaturesAck && bytes.HasPrefix(frame, aap.FeaturesAck):
		s.state = streaming
		_, err := s.stream.Write(aap.RequestNotifications)
		return err

	default:
		before := s.shadow.Hash()
		s.applyFrame(aap.Classify(frame))
		if after := s.shadow.Hash(); after != before {
			merged := s.store.ApplyEarbud(status.EarbudUpdate{
				Metadata:   s.shadow.Metadata,
				Components: s.shadow.Components,
				Ear:        s.shadow.Ear,
			})
			s.pub.Publish(merged)
		}
		return nil
	}
}

func (s *airPodsSession) applyFrame(frame aap.Frame) {
	s.frames++
	switch f := frame.(type) {
	case *aap.MetadataPacket:
		s.shadow.Metadata = &status.Metadata{Name: f.DeviceName, Model: f.ModelNumber}

	case *aap.BatteryPacket:
		// The first Left/Right ever reported stays primary for the whole
		// session, even after that pod disconnects.
		if s.primary == aap.PodNone {
			s.primary = f.Primary
		}
		if f.Left != nil {
			s.shadow.Components.Left = f.Left
		}
		if f.Right != nil {
			s.shadow.Components.Right = f.Right
		}
		if f.Case != nil {
			s.shadow.Components.Case = f.Case
		}

	case *aap.InEarPacket:
		if ears, ok := f.Attribute(s.primary); ok {
			s.shadow.Ear = ears
		}

	case aap.Unrecognized:
		s.unrecognized++
		s.log.WithField("bytes", len(f)).Trace("unrecognized frame")
	}
}
