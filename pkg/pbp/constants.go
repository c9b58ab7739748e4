// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package pbp implements the vendor RPC protocol the buds speak over
// RFCOMM: a byte-stuffed frame codec with a CRC-16-CCITT trailer, CBOR
// packet bodies, and a client multiplexing unary calls and server
// streams over one stream.
package pbp

import "github.com/google/uuid"

// ServiceUUID is the RFCOMM service the buds expose for the RPC channel.
var ServiceUUID = uuid.MustParse("df21fe2c-2515-4fdb-8886-f12c4d67927c")

// Frame delimiters and byte stuffing constants.
const (
	StartByte = 0x7E // Frame start
	EndByte   = 0x7F // Frame end
	EscByte   = 0x7D // Escape marker
	EscXor    = 0x20 // XOR applied to escaped bytes
)

// MaxFrameSize is the maximum unescaped frame body, packet plus
// checksum trailer.
const MaxFrameSize = 512

// crcSize is the checksum trailer length in bytes.
const crcSize = 2

// CRC-16-CCITT parameters.
const (
	crcInitial    = 0xFFFF
	crcPolynomial = 0x1021
)

// Packet types.
const (
	TypeRequest      = 0x01
	TypeResponse     = 0x02
	TypeServerStream = 0x03
	TypeError        = 0x04
)

// ControlChannel carries channel resolution before any device service is
// reachable.
const ControlChannel = 0

// Channel control service endpoints.
const (
	ServiceChannelControl = 0x01
	MethodResolveChannel  = 0x01
)

// Device info service endpoints.
const (
	ServiceDeviceInfo      = 0x02
	MethodSubscribeRuntime = 0x01
)
