// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package pbp

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := CalculateCRC(nil); crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCalculateCRC_KnownValue(t *testing.T) {
	// Standard CRC-16-CCITT check value.
	if crc := CalculateCRC([]byte("123456789")); crc != 0x29B1 {
		t.Errorf("CRC of check string = 0x%04X, want 0x29B1", crc)
	}
}

// ============================================================
// Frame Round-Trip Tests
// ============================================================

func decodeAll(t *testing.T, dec *Decoder, wire []byte) []*Packet {
	t.Helper()
	var packets []*Packet
	for _, b := range wire {
		p, err := dec.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte(0x%02X): %v", b, err)
		}
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
	}{
		{
			"request without payload",
			Packet{Channel: ControlChannel, Type: TypeRequest, Service: ServiceChannelControl, Method: MethodResolveChannel, Call: 1},
		},
		{
			"response with payload",
			Packet{Type: TypeResponse, Call: 7, Payload: []byte{0xA1, 0x01, 0x02}},
		},
		{
			"stream message",
			Packet{Channel: 9, Type: TypeServerStream, Service: ServiceDeviceInfo, Method: MethodSubscribeRuntime, Call: 3, Payload: []byte{0xDE, 0xAD}},
		},
		{
			"payload containing delimiter and escape bytes",
			Packet{Type: TypeResponse, Call: 2, Payload: []byte{StartByte, EndByte, EscByte, StartByte ^ EscXor, 0x00}},
		},
		{
			"error packet with status",
			Packet{Type: TypeError, Call: 4, Status: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := EncodePacket(&tt.packet)
			if err != nil {
				t.Fatalf("EncodePacket: %v", err)
			}
			if wire[0] != StartByte || wire[len(wire)-1] != EndByte {
				t.Fatalf("frame not delimited: % X", wire)
			}

			packets := decodeAll(t, NewDecoder(), wire)
			if len(packets) != 1 {
				t.Fatalf("decoded %d packets, want 1", len(packets))
			}

			got := packets[0]
			if got.Channel != tt.packet.Channel || got.Type != tt.packet.Type ||
				got.Service != tt.packet.Service || got.Method != tt.packet.Method ||
				got.Call != tt.packet.Call || got.Status != tt.packet.Status ||
				!bytes.Equal(got.Payload, tt.packet.Payload) {
				t.Errorf("roundtrip mismatch:\n  sent %+v\n  got  %+v", tt.packet, *got)
			}
		})
	}
}

func TestEncodeFrame_TooLarge(t *testing.T) {
	_, err := EncodeFrame(make([]byte, MaxFrameSize))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecoder_FlippedByteIsChecksumError(t *testing.T) {
	wire, err := EncodePacket(&Packet{Type: TypeResponse, Call: 1, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	// Flip a body byte just after the start delimiter.
	wire[2] ^= 0x10

	dec := NewDecoder()
	var sawChecksum bool
	for _, b := range wire {
		p, err := dec.DecodeByte(b)
		if errors.Is(err, ErrBadChecksum) {
			sawChecksum = true
		}
		if p != nil {
			t.Fatalf("corrupted frame produced a packet: %+v", p)
		}
	}
	if !sawChecksum {
		t.Error("expected a checksum error")
	}
	if dec.Stats().CRCErrors != 1 {
		t.Errorf("CRCErrors = %d, want 1", dec.Stats().CRCErrors)
	}
}

func TestDecoder_GarbageBetweenFrames(t *testing.T) {
	p1, _ := EncodePacket(&Packet{Type: TypeResponse, Call: 1})
	p2, _ := EncodePacket(&Packet{Type: TypeServerStream, Call: 2, Payload: []byte{0xFF}})

	var wire []byte
	wire = append(wire, 0x00, 0x13, 0x37)
	wire = append(wire, p1...)
	wire = append(wire, 0xAA, 0xBB)
	wire = append(wire, p2...)
	wire = append(wire, 0x42)

	dec := NewDecoder()
	packets := decodeAll(t, dec, wire)
	if len(packets) != 2 {
		t.Fatalf("decoded %d packets, want 2", len(packets))
	}
	if packets[0].Call != 1 || packets[1].Call != 2 {
		t.Errorf("packets out of order: calls %d, %d", packets[0].Call, packets[1].Call)
	}
	if dec.Stats().Frames != 2 {
		t.Errorf("Frames = %d, want 2", dec.Stats().Frames)
	}
}

func TestDecoder_RestartMidFrame(t *testing.T) {
	good, _ := EncodePacket(&Packet{Type: TypeResponse, Call: 9})

	// A start delimiter inside a frame abandons the partial frame.
	var wire []byte
	wire = append(wire, StartByte, 0x01, 0x02, 0x03)
	wire = append(wire, good...)

	packets := decodeAll(t, NewDecoder(), wire)
	if len(packets) != 1 || packets[0].Call != 9 {
		t.Fatalf("decoded %v, want single packet with call 9", packets)
	}
}

func TestDecoder_ShortFrame(t *testing.T) {
	dec := NewDecoder()
	var lastErr error
	for _, b := range []byte{StartByte, 0x01, EndByte} {
		_, err := dec.DecodeByte(b)
		if err != nil {
			lastErr = err
		}
	}
	if !errors.Is(lastErr, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", lastErr)
	}
}

func TestDecoder_Overflow(t *testing.T) {
	dec := NewDecoder()
	if _, err := dec.DecodeByte(StartByte); err != nil {
		t.Fatal(err)
	}
	var overflowed bool
	for i := 0; i < MaxFrameSize+1; i++ {
		if _, err := dec.DecodeByte(0x01); errors.Is(err, ErrFrameTooLarge) {
			overflowed = true
			break
		}
	}
	if !overflowed {
		t.Error("expected ErrFrameTooLarge")
	}
	if dec.Stats().Overflows != 1 {
		t.Errorf("Overflows = %d, want 1", dec.Stats().Overflows)
	}
}

func TestDecode_Chunked(t *testing.T) {
	wire, _ := EncodePacket(&Packet{Type: TypeResponse, Call: 5, Payload: []byte{1, 2, 3}})

	dec := NewDecoder()
	// Split mid-frame; Decode carries state across chunks.
	got := dec.Decode(wire[:3])
	got = append(got, dec.Decode(wire[3:])...)

	if len(got) != 1 || got[0].Call != 5 {
		t.Fatalf("decoded %v, want single packet with call 5", got)
	}
}
