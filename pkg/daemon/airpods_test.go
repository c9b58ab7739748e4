// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package daemon

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtmn/plants-go/pkg/aap"
	"github.com/mtmn/plants-go/pkg/status"
)

// recorder collects every published snapshot.
type recorder struct {
	mu        sync.Mutex
	snapshots []status.Status
}

func (r *recorder) Publish(s status.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) all() []status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status.Status(nil), r.snapshots...)
}

func (r *recorder) last(t *testing.T) status.Status {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.snapshots)
	return r.snapshots[len(r.snapshots)-1]
}

// scriptedStream hands out pre-scripted frames one Read at a time and
// records writes. After the script it simulates a zero-byte read.
type scriptedStream struct {
	frames [][]byte
	writes [][]byte
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if len(s.frames) == 0 {
		return 0, nil // zero-byte read ends the session
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return copy(p, frame), nil
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (s *scriptedStream) Close() error { return nil }

// Frame builders matching the earbud notification layouts.

func batteryFrame(entries ...[5]byte) []byte {
	frame := []byte{0x04, 0x00, 0x04, 0x00, 0x04, 0x00, byte(len(entries))}
	for _, e := range entries {
		frame = append(frame, e[:]...)
	}
	return frame
}

func batteryEntry(component, level, state byte) [5]byte {
	return [5]byte{component, 0x01, level, state, 0x01}
}

func inEarFrame(primary, secondary byte) []byte {
	return []byte{0x04, 0x00, 0x04, 0x00, 0x06, 0x00, primary, secondary}
}

func metadataFrame(name, model, manufacturer string) []byte {
	frame := []byte{0x04, 0x00, 0x04, 0x00, 0x1D, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	for _, s := range []string{name, model, manufacturer} {
		frame = append(frame, []byte(s)...)
		frame = append(frame, 0x00)
	}
	return frame
}

const (
	compLeft  = 0x04
	compRight = 0x02
	compCase  = 0x08

	stateCharging    = 0x01
	stateDischarging = 0x02
)

func newTestSource(t *testing.T) (*AirPodsSource, *status.Store, *recorder) {
	t.Helper()
	store := status.NewStore()
	rec := &recorder{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	src := &AirPodsSource{store: store, pub: rec, log: log}
	return src, store, rec
}

func runScript(t *testing.T, src *AirPodsSource, frames ...[]byte) *scriptedStream {
	t.Helper()
	script := [][]byte{aap.HandshakeAck, aap.FeaturesAck}
	script = append(script, frames...)
	stream := &scriptedStream{frames: script}
	src.HandleStream(stream)
	return stream
}

func TestSessionHandshakeSequence(t *testing.T) {
	src, _, _ := newTestSource(t)
	stream := runScript(t, src)

	require.Len(t, stream.writes, 3)
	assert.Equal(t, aap.Handshake, stream.writes[0])
	assert.Equal(t, aap.SetSpecificFeatures, stream.writes[1])
	assert.Equal(t, aap.RequestNotifications, stream.writes[2])
}

func TestSessionIgnoresAcksOnceStreaming(t *testing.T) {
	src, _, _ := newTestSource(t)
	// Ack prefixes replayed after the handshake are ordinary data
	// frames and must not re-trigger the handshake writes.
	stream := runScript(t, src, aap.HandshakeAck, aap.FeaturesAck)

	require.Len(t, stream.writes, 3)
	assert.Equal(t, aap.RequestNotifications, stream.writes[2])
}

func TestSessionPublishesParsedBattery(t *testing.T) {
	src, _, rec := newTestSource(t)
	runScript(t, src, batteryFrame(
		batteryEntry(compLeft, 50, stateDischarging),
	))

	// One publish for the battery frame, one for the disconnect clear.
	snaps := rec.all()
	require.Len(t, snaps, 2)
	require.NotNil(t, snaps[0].Components.Left)
	assert.Equal(t, uint8(50), snaps[0].Components.Left.Level)
	assert.Equal(t, status.Discharging, snaps[0].Components.Left.Status)
}

func TestSessionSuppressesRepeatPublish(t *testing.T) {
	src, _, rec := newTestSource(t)
	p1 := batteryFrame(batteryEntry(compLeft, 50, stateDischarging))
	runScript(t, src, p1, p1)

	// The identical second frame must not publish again; only the
	// battery publish and the final disconnect clear appear.
	assert.Len(t, rec.all(), 2)
}

func TestSessionStickyPrimaryPod(t *testing.T) {
	src, _, rec := newTestSource(t)
	runScript(t, src,
		batteryFrame(batteryEntry(compLeft, 50, stateDischarging)),
		batteryFrame(batteryEntry(compRight, 60, stateDischarging)),
		inEarFrame(0x00, 0x02), // primary slot InEar, secondary InCase
	)

	snaps := rec.all()
	require.GreaterOrEqual(t, len(snaps), 2)
	// Left was reported first and stays primary, so the primary slot's
	// InEar maps to the left side even though Right reported later.
	withEars := snaps[len(snaps)-2]
	assert.Equal(t, status.InEar, withEars.Ear.Left)
	assert.Equal(t, status.InCase, withEars.Ear.Right)
}

func TestSessionDropsInEarWithoutPrimary(t *testing.T) {
	src, _, rec := newTestSource(t)
	runScript(t, src, inEarFrame(0x00, 0x00))

	// No primary pod was ever established: the frame is dropped and
	// only the disconnect clear publishes.
	snaps := rec.all()
	require.Len(t, snaps, 1)
	assert.Equal(t, status.EarDisconnected, snaps[0].Ear.Left)
}

func TestSessionMetadata(t *testing.T) {
	src, _, rec := newTestSource(t)
	runScript(t, src,
		metadataFrame("Buddy", "A2", "Acme"),
		batteryFrame(batteryEntry(compLeft, 50, stateDischarging)),
	)

	snaps := rec.all()
	require.GreaterOrEqual(t, len(snaps), 2)
	withMeta := snaps[0]
	require.NotNil(t, withMeta.Metadata)
	assert.Equal(t, "Buddy", withMeta.Metadata.Name)
	assert.Equal(t, "A2", withMeta.Metadata.Model)
}

func TestSessionUnrecognizedFramesDropped(t *testing.T) {
	src, _, rec := newTestSource(t)
	runScript(t, src, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	// Garbage never mutates state or publishes.
	assert.Len(t, rec.all(), 1) // disconnect clear only
}

func TestDisconnectClearsEarbudButNotDevices(t *testing.T) {
	src, store, rec := newTestSource(t)

	devices := []status.Device{{Name: "kb", Battery: 77, Status: status.Discharging}}
	store.ApplyDevices(status.DeviceListUpdate{Devices: devices})

	runScript(t, src,
		batteryFrame(
			batteryEntry(compLeft, 40, stateDischarging),
			batteryEntry(compRight, 60, stateDischarging),
			batteryEntry(compCase, 90, stateDischarging),
		),
		inEarFrame(0x00, 0x00),
	)

	final := rec.last(t)
	assert.Nil(t, final.Components.Left)
	assert.Nil(t, final.Components.Right)
	assert.Nil(t, final.Components.Case)
	assert.Equal(t, status.EarDisconnected, final.Ear.Left)
	assert.Equal(t, status.EarDisconnected, final.Ear.Right)
	assert.Equal(t, devices, final.Devices)
}
