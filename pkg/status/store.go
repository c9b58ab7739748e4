// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package status

import "sync"

// Publisher broadcasts a snapshot to whoever is listening. Implementations
// must be fire-and-forget and tolerate having no subscribers at all.
type Publisher interface {
	Publish(Status)
}

// PublisherFunc adapts a plain function to the Publisher interface.
type PublisherFunc func(Status)

// Publish calls f.
func (f PublisherFunc) Publish(s Status) { f(s) }

// NoopPublisher discards every snapshot.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(Status) {}

var (
	_ Publisher = PublisherFunc(nil)
	_ Publisher = NoopPublisher{}
)

// EarbudUpdate is the field-group written by an earbud source. A nil
// Metadata leaves the stored metadata untouched; the vendor RPC source
// never learns device names and must not erase one set by the framing
// protocol source.
type EarbudUpdate struct {
	Metadata   *Metadata
	Components Components
	Ear        Ears
}

// DeviceListUpdate is the field-group written by the generic device
// source. The list replaces the stored one wholesale.
type DeviceListUpdate struct {
	Devices []Device
}

// Store is the single canonical snapshot. Every mutation is a short
// critical section that assigns one field-group and clones the result;
// no lock is ever held across I/O.
type Store struct {
	mu  sync.Mutex
	cur Status
}

// NewStore returns a store holding a fully disconnected snapshot.
func NewStore() *Store {
	return &Store{cur: New()}
}

// Snapshot returns a deep copy of the current state.
func (st *Store) Snapshot() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cur.Clone()
}

// ApplyEarbud merges an earbud update and returns the resulting snapshot.
func (st *Store) ApplyEarbud(u EarbudUpdate) Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	if u.Metadata != nil {
		m := *u.Metadata
		st.cur.Metadata = &m
	}
	st.cur.Components = u.Components.Clone()
	st.cur.Ear = u.Ear
	return st.cur.Clone()
}

// ApplyDevices replaces the generic device list and returns the resulting
// snapshot.
func (st *Store) ApplyDevices(u DeviceListUpdate) Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur.Devices = append([]Device(nil), u.Devices...)
	return st.cur.Clone()
}

// ClearEarbud resets the whole earbud field-group, metadata included, and
// returns the resulting snapshot. The device list is never touched.
func (st *Store) ClearEarbud() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur.Metadata = nil
	st.cur.Components = Components{}
	st.cur.Ear = DisconnectedEars()
	return st.cur.Clone()
}

// ClearEarbudIfAnonymous resets components and ear only when no metadata
// claims them. Metadata marks an active framing-protocol session; its
// readings must survive the vendor RPC source's idle cycles.
func (st *Store) ClearEarbudIfAnonymous() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cur.Metadata == nil {
		st.cur.Components = Components{}
		st.cur.Ear = DisconnectedEars()
	}
	return st.cur.Clone()
}
