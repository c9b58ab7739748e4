// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package aap

import (
	"bytes"

	"github.com/mtmn/plants-go/pkg/status"
)

// Pod identifies which physical earbud a frame's "primary" slot refers to.
type Pod int

const (
	PodNone Pod = iota
	PodLeft
	PodRight
)

// String returns the pod name.
func (p Pod) String() string {
	switch p {
	case PodLeft:
		return "Left"
	case PodRight:
		return "Right"
	default:
		return "None"
	}
}

// BatteryPacket is one parsed battery notification. Components the frame
// did not report, or reported with malformed entries, are nil.
type BatteryPacket struct {
	Left  *status.Component
	Right *status.Component
	Case  *status.Component

	// Primary is the first Left or Right entry of this frame. Sessions
	// keep the first non-None value they see; the attribution of in-ear
	// frames depends on it.
	Primary Pod
}

// ParseBattery parses a battery notification. It returns nil unless the
// frame opens with the battery marker, carries a component count of at
// most 3 at offset 6, and is exactly 7+5*count bytes long. Entries with a
// bad bracket marker, an unknown component id or an unknown charge state
// are skipped without failing the frame.
func ParseBattery(raw []byte) *BatteryPacket {
	if !bytes.HasPrefix(raw, markerBattery) || len(raw) <= 6 {
		return nil
	}

	count := int(raw[6])
	if count > 3 || len(raw) != 7+5*count {
		return nil
	}

	pkt := &BatteryPacket{}
	for i := 0; i < count; i++ {
		entry := raw[7+5*i : 7+5*i+5]
		if entry[1] != entryMarker || entry[4] != entryMarker {
			continue
		}

		state, ok := chargeStateFrom(entry[3])
		if !ok {
			continue
		}
		comp := &status.Component{Level: entry[2], Status: state}

		switch entry[0] {
		case componentLeft:
			pkt.Left = comp
			if pkt.Primary == PodNone {
				pkt.Primary = PodLeft
			}
		case componentRight:
			pkt.Right = comp
			if pkt.Primary == PodNone {
				pkt.Primary = PodRight
			}
		case componentCase:
			pkt.Case = comp
		}
	}

	return pkt
}

func chargeStateFrom(code byte) (status.BatteryState, bool) {
	switch code {
	case chargeCharging:
		return status.Charging, true
	case chargeDischarging:
		return status.Discharging, true
	case chargeDisconnected:
		return status.Disconnected, true
	default:
		return "", false
	}
}

// Components returns the readings in left, right, case order.
func (p *BatteryPacket) Components() status.Components {
	return status.Components{Left: p.Left, Right: p.Right, Case: p.Case}
}
