// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package pbp

import "fmt"

// EncodeFrame wraps a packet body in the wire framing: start delimiter,
// byte-stuffed body plus big-endian CRC trailer, end delimiter.
func EncodeFrame(body []byte) ([]byte, error) {
	if len(body)+crcSize > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(body), MaxFrameSize-crcSize)
	}

	crc := CalculateCRC(body)
	data := make([]byte, 0, len(body)+crcSize)
	data = append(data, body...)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)
	return frame, nil
}

// EncodePacket encodes a packet to wire format: CBOR body inside the
// framing of EncodeFrame.
func EncodePacket(p *Packet) ([]byte, error) {
	body, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}
	return EncodeFrame(body)
}

// stuffBytes escapes delimiter and escape bytes so they cannot appear
// inside a frame body.
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}
