// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package aap

// Frame is one classified inbound frame: *MetadataPacket, *BatteryPacket,
// *InEarPacket or Unrecognized.
type Frame interface {
	isFrame()
}

// Unrecognized carries a frame no parser claimed.
type Unrecognized []byte

func (*MetadataPacket) isFrame() {}
func (*BatteryPacket) isFrame() {}
func (*InEarPacket) isFrame() {}
func (Unrecognized) isFrame() {}

// Classify tries the parsers in priority order: metadata, battery,
// in-ear. The first match is authoritative; the markers are disjoint so
// no frame can match twice.
func Classify(data []byte) Frame {
	if p := ParseMetadata(data); p != nil {
		return p
	}
	if p := ParseBattery(data); p != nil {
		return p
	}
	if p := ParseInEar(data); p != nil {
		return p
	}
	return Unrecognized(append([]byte(nil), data...))
}
