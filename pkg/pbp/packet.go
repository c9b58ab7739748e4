// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package pbp

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("pbp: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("pbp: cbor dec mode: %v", err))
	}
}

// Packet is one RPC message. The wire form is a canonical CBOR map with
// integer keys; zero-valued fields are omitted.
type Packet struct {
	Channel uint32 `cbor:"1,keyasint,omitempty"`
	Type    uint8  `cbor:"2,keyasint,omitempty"`
	Service uint32 `cbor:"3,keyasint,omitempty"`
	Method  uint32 `cbor:"4,keyasint,omitempty"`
	Call    uint32 `cbor:"5,keyasint,omitempty"`
	Payload []byte `cbor:"6,keyasint,omitempty"`
	Status  uint32 `cbor:"7,keyasint,omitempty"`
}

// Marshal encodes the packet body as canonical CBOR.
func (p *Packet) Marshal() ([]byte, error) {
	return encMode.Marshal(p)
}

// UnmarshalPacket decodes a CBOR packet body.
func UnmarshalPacket(data []byte) (*Packet, error) {
	var p Packet
	if err := decMode.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode packet body: %w", err)
	}
	return &p, nil
}

// TypeName returns a human-readable packet type name.
func TypeName(t uint8) string {
	switch t {
	case TypeRequest:
		return "REQUEST"
	case TypeResponse:
		return "RESPONSE"
	case TypeServerStream:
		return "SERVER_STREAM"
	case TypeError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
