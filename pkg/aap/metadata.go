// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package aap

import "bytes"

// MetadataPacket is one parsed metadata notification.
type MetadataPacket struct {
	DeviceName   string
	ModelNumber  string
	Manufacturer string
}

// ParseMetadata parses a metadata notification: the 11-byte marker header
// followed by three NUL-terminated UTF-8 strings. Returns nil when the
// header is missing. Missing terminators truncate at the frame end rather
// than failing.
func ParseMetadata(raw []byte) *MetadataPacket {
	if len(raw) < len(markerMetadata) || !bytes.HasPrefix(raw, markerMetadata) {
		return nil
	}

	rest := raw[len(markerMetadata):]
	pkt := &MetadataPacket{}
	pkt.DeviceName, rest = readCString(rest)
	pkt.ModelNumber, rest = readCString(rest)
	pkt.Manufacturer, _ = readCString(rest)
	return pkt
}

// readCString consumes one NUL-terminated string from b.
func readCString(b []byte) (string, []byte) {
	i := bytes.IndexByte(b, 0x00)
	if i < 0 {
		return string(b), nil
	}
	return string(b[:i]), b[i+1:]
}
