// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package aap

import (
	"bytes"

	"github.com/mtmn/plants-go/pkg/status"
)

// InEarPacket is one parsed ear-detection notification. The frame reports
// wearer position for the primary and secondary slots; which physical
// side each slot means depends on the session's primary pod.
type InEarPacket struct {
	Primary   status.EarState
	Secondary status.EarState
}

// ParseInEar parses an ear-detection notification. Only frames of exactly
// 8 bytes opening with the in-ear marker are recognized.
func ParseInEar(raw []byte) *InEarPacket {
	if len(raw) != 8 || !bytes.HasPrefix(raw, markerInEar) {
		return nil
	}
	return &InEarPacket{
		Primary:   earStateFrom(raw[6]),
		Secondary: earStateFrom(raw[7]),
	}
}

func earStateFrom(code byte) status.EarState {
	switch code {
	case 0x00:
		return status.InEar
	case 0x01:
		return status.NotInEar
	case 0x02:
		return status.InCase
	default:
		return status.EarDisconnected
	}
}

// Attribute maps the primary/secondary slots onto physical sides. ok is
// false when no primary pod has been established, in which case the frame
// cannot be attributed and must be dropped.
func (p *InEarPacket) Attribute(primary Pod) (ears status.Ears, ok bool) {
	switch primary {
	case PodLeft:
		return status.Ears{Left: p.Primary, Right: p.Secondary}, true
	case PodRight:
		return status.Ears{Left: p.Secondary, Right: p.Primary}, true
	default:
		return status.Ears{}, false
	}
}
