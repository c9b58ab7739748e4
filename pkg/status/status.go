// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package status defines the canonical battery snapshot shared by every
// data source and the mutex-guarded store that merges partial updates
// into it.
package status

import (
	"encoding/json"
	"hash/fnv"
)

// BatteryState describes the charge state of a single battery.
type BatteryState string

const (
	Charging     BatteryState = "Charging"
	Discharging  BatteryState = "Discharging"
	Disconnected BatteryState = "Disconnected"
)

// EarState describes where a single earbud currently is.
type EarState string

const (
	InEar           EarState = "InEar"
	NotInEar        EarState = "NotInEar"
	InCase          EarState = "InCase"
	EarDisconnected EarState = "Disconnected"
)

// Status is the canonical snapshot. The field-groups {Metadata, Components,
// Ear} and {Devices} are owned by disjoint sources; no source ever writes
// the other group.
type Status struct {
	Metadata   *Metadata  `json:"metadata"`
	Components Components `json:"components"`
	Ear        Ears       `json:"ear"`
	Devices    []Device   `json:"devices"`
}

// Metadata identifies the earbud set currently streaming.
type Metadata struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Components holds per-part battery readings. A nil entry means the part
// has never been reported in the current session.
type Components struct {
	Left  *Component `json:"left"`
	Right *Component `json:"right"`
	Case  *Component `json:"case"`
}

// Component is one battery reading.
type Component struct {
	Level  uint8        `json:"level"`
	Status BatteryState `json:"status"`
}

// Ears holds the wear position of both earbuds.
type Ears struct {
	Left  EarState `json:"left"`
	Right EarState `json:"right"`
}

// Device is one generic Bluetooth peripheral with a readable battery.
// Absent devices are simply omitted from the list, never marked
// disconnected.
type Device struct {
	Name    string       `json:"name"`
	Battery uint8        `json:"battery"`
	Text    string       `json:"text,omitempty"`
	Status  BatteryState `json:"status"`
}

// New returns a fully disconnected snapshot.
func New() Status {
	return Status{Ear: DisconnectedEars()}
}

// DisconnectedEars is the ear state with no earbud session.
func DisconnectedEars() Ears {
	return Ears{Left: EarDisconnected, Right: EarDisconnected}
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (s Status) Clone() Status {
	out := s
	if s.Metadata != nil {
		m := *s.Metadata
		out.Metadata = &m
	}
	out.Components = s.Components.Clone()
	if s.Devices != nil {
		out.Devices = append([]Device(nil), s.Devices...)
	}
	return out
}

// Clone returns a deep copy of the component readings.
func (c Components) Clone() Components {
	out := c
	if c.Left != nil {
		v := *c.Left
		out.Left = &v
	}
	if c.Right != nil {
		v := *c.Right
		out.Right = &v
	}
	if c.Case != nil {
		v := *c.Case
		out.Case = &v
	}
	return out
}

// Valid reports whether the snapshot carries anything worth rendering.
func (s Status) Valid() bool {
	c := s.Components
	return c.Left != nil || c.Right != nil || c.Case != nil || len(s.Devices) > 0
}

// MinPods returns the lowest battery level among discharging earbuds.
// ok is false when neither pod is discharging.
func (s Status) MinPods() (level uint8, ok bool) {
	level = 255
	for _, c := range []*Component{s.Components.Left, s.Components.Right} {
		if c == nil || c.Status != Discharging {
			continue
		}
		if c.Level <= level {
			level = c.Level
			ok = true
		}
	}
	if !ok {
		return 0, false
	}
	return level, true
}

// Hash is the content hash used to suppress no-op publishes. The JSON
// encoding is deterministic for this type (fixed field order, ordered
// device list), so equal snapshots always hash equal.
func (s Status) Hash() uint64 {
	b, err := json.Marshal(s)
	if err != nil {
		// Status contains only marshalable fields.
		panic(err)
	}
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
