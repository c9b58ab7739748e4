// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package aap implements the proprietary earbud accessory protocol spoken
// over RFCOMM: the session handshake messages and stateless parsers for
// the three notification frame kinds (metadata, battery, in-ear).
package aap

import "github.com/google/uuid"

// ServiceUUID is the RFCOMM service the earbuds expose.
var ServiceUUID = uuid.MustParse("74ec2172-0bad-4d01-8f77-997b2be0722a")

// Session messages written by the client, in handshake order.
var (
	Handshake = []byte{
		0x00, 0x00, 0x04, 0x00, 0x01, 0x00, 0x02, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	SetSpecificFeatures = []byte{
		0x04, 0x00, 0x04, 0x00, 0x4D, 0x00, 0xFF, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	RequestNotifications = []byte{
		0x04, 0x00, 0x04, 0x00, 0x0F, 0x00, 0xFF, 0xFF, 0xFF, 0xFF,
	}
)

// Acknowledgement prefixes read back from the device.
var (
	HandshakeAck = []byte{0x01, 0x00, 0x04, 0x00}
	FeaturesAck  = []byte{0x04, 0x00, 0x04, 0x00, 0x2B, 0x00}
)

// Markers that open the three notification frame kinds. The metadata
// marker covers the frame's whole fixed header; battery and in-ear
// markers are followed by frame-specific payload bytes.
var (
	markerBattery = []byte{0x04, 0x00, 0x04, 0x00, 0x04, 0x00}
	markerInEar   = []byte{0x04, 0x00, 0x04, 0x00, 0x06, 0x00}
	markerMetadata = []byte{
		0x04, 0x00, 0x04, 0x00, 0x1D, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
	}
)

// Component ids inside battery frame entries.
const (
	componentRight = 0x02
	componentLeft  = 0x04
	componentCase  = 0x08
)

// Charge state codes inside battery frame entries.
const (
	chargeCharging     = 0x01
	chargeDischarging  = 0x02
	chargeDisconnected = 0x04
)

// entryMarker brackets the level and state bytes of every battery entry.
const entryMarker = 0x01
