// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package pbp

import (
	"errors"
	"fmt"
)

// Sentinel errors callers can branch on with errors.Is.
var (
	ErrFrameTooLarge = errors.New("frame too large")
	ErrBadChecksum   = errors.New("checksum mismatch")
	ErrShortFrame    = errors.New("frame shorter than checksum trailer")
)

// Decoder state machine states.
const (
	stateWaitStart = iota
	stateInFrame
	stateEscape
)

// Stats counts decoder outcomes over the life of one session. The
// session logs them at teardown.
type Stats struct {
	Frames       uint64
	CRCErrors    uint64
	DecodeErrors uint64
	Overflows    uint64
}

// String renders the counters in a single log-friendly line.
func (s Stats) String() string {
	return fmt.Sprintf("frames=%d crc_errors=%d decode_errors=%d overflows=%d",
		s.Frames, s.CRCErrors, s.DecodeErrors, s.Overflows)
}

// Decoder implements the frame decoder state machine. Bytes outside a
// frame are garbage and discarded; a start delimiter always begins a
// fresh frame, so the decoder resynchronizes on the next frame after any
// error.
type Decoder struct {
	state  int
	buffer []byte
	stats  Stats
}

// NewDecoder creates a decoder in the wait-start state.
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateWaitStart,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset discards any partial frame.
func (d *Decoder) Reset() {
	d.state = stateWaitStart
	d.buffer = d.buffer[:0]
}

// Stats returns the counters accumulated so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// DecodeByte feeds one byte through the state machine. It returns a
// completed packet when the byte closes a valid frame, nil while a frame
// is incomplete, and an error when a frame is rejected. Errors never
// poison the decoder; the next start delimiter opens a clean frame.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	switch b {
	case StartByte:
		// A start inside a frame abandons the partial frame.
		d.Reset()
		d.state = stateInFrame
		return nil, nil

	case EndByte:
		if d.state == stateWaitStart {
			return nil, nil
		}
		if d.state == stateEscape {
			d.Reset()
			d.stats.DecodeErrors++
			return nil, errors.New("end delimiter inside escape sequence")
		}
		return d.finish()
	}

	switch d.state {
	case stateWaitStart:
		// Garbage between frames.
		return nil, nil

	case stateEscape:
		d.state = stateInFrame
		return d.accept(b ^ EscXor)

	case stateInFrame:
		if b == EscByte {
			d.state = stateEscape
			return nil, nil
		}
		return d.accept(b)

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds a whole chunk through the state machine and returns every
// packet it completes. Per-frame errors are counted and skipped.
func (d *Decoder) Decode(chunk []byte) []*Packet {
	var packets []*Packet
	for _, b := range chunk {
		p, err := d.DecodeByte(b)
		if err != nil {
			continue
		}
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets
}

func (d *Decoder) accept(b byte) (*Packet, error) {
	if len(d.buffer) >= MaxFrameSize {
		d.Reset()
		d.stats.Overflows++
		return nil, ErrFrameTooLarge
	}
	d.buffer = append(d.buffer, b)
	return nil, nil
}

func (d *Decoder) finish() (*Packet, error) {
	defer d.Reset()

	if len(d.buffer) < crcSize {
		d.stats.DecodeErrors++
		return nil, ErrShortFrame
	}

	body := d.buffer[:len(d.buffer)-crcSize]
	want := uint16(d.buffer[len(d.buffer)-crcSize])<<8 | uint16(d.buffer[len(d.buffer)-1])
	if got := CalculateCRC(body); got != want {
		d.stats.CRCErrors++
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrBadChecksum, got, want)
	}

	p, err := UnmarshalPacket(body)
	if err != nil {
		d.stats.DecodeErrors++
		return nil, err
	}

	d.stats.Frames++
	return p, nil
}
