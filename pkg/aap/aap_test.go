// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package aap

import (
	"bytes"
	"testing"

	"github.com/mtmn/plants-go/pkg/status"
)

// ============================================================
// Frame Builders
// ============================================================

// buildBatteryFrame creates a battery frame with the given 5-byte entries.
func buildBatteryFrame(entries ...[5]byte) []byte {
	frame := append([]byte{}, markerBattery...)
	frame = append(frame, byte(len(entries)))
	for _, e := range entries {
		frame = append(frame, e[:]...)
	}
	return frame
}

func batteryEntry(id, level, state byte) [5]byte {
	return [5]byte{id, entryMarker, level, state, entryMarker}
}

// buildInEarFrame creates an ear-detection frame for the two slot codes.
func buildInEarFrame(primary, secondary byte) []byte {
	frame := append([]byte{}, markerInEar...)
	return append(frame, primary, secondary)
}

// buildMetadataFrame creates a metadata frame from NUL-terminated strings.
func buildMetadataFrame(name, model, manufacturer string) []byte {
	frame := append([]byte{}, markerMetadata...)
	for _, s := range []string{name, model, manufacturer} {
		frame = append(frame, []byte(s)...)
		frame = append(frame, 0x00)
	}
	return frame
}

// ============================================================
// Battery Frame Tests
// ============================================================

func TestParseBattery_EntryCounts(t *testing.T) {
	all := [][5]byte{
		batteryEntry(componentLeft, 40, chargeDischarging),
		batteryEntry(componentRight, 60, chargeCharging),
		batteryEntry(componentCase, 90, chargeDisconnected),
	}

	for n := 0; n <= 3; n++ {
		frame := buildBatteryFrame(all[:n]...)
		pkt := ParseBattery(frame)
		if pkt == nil {
			t.Fatalf("frame with %d entries not recognized: % X", n, frame)
		}

		got := 0
		for _, c := range []*status.Component{pkt.Left, pkt.Right, pkt.Case} {
			if c != nil {
				got++
			}
		}
		if got != n {
			t.Errorf("expected %d mapped components, got %d", n, got)
		}
	}
}

func TestParseBattery_Values(t *testing.T) {
	frame := buildBatteryFrame(
		batteryEntry(componentLeft, 40, chargeDischarging),
		batteryEntry(componentRight, 60, chargeCharging),
		batteryEntry(componentCase, 90, chargeDisconnected),
	)
	pkt := ParseBattery(frame)
	if pkt == nil {
		t.Fatalf("frame not recognized: % X", frame)
	}

	if pkt.Left == nil || pkt.Left.Level != 40 || pkt.Left.Status != status.Discharging {
		t.Errorf("bad left component: %+v", pkt.Left)
	}
	if pkt.Right == nil || pkt.Right.Level != 60 || pkt.Right.Status != status.Charging {
		t.Errorf("bad right component: %+v", pkt.Right)
	}
	if pkt.Case == nil || pkt.Case.Level != 90 || pkt.Case.Status != status.Disconnected {
		t.Errorf("bad case component: %+v", pkt.Case)
	}
	if pkt.Primary != PodLeft {
		t.Errorf("expected primary Left, got %s", pkt.Primary)
	}
}

func TestParseBattery_Rejections(t *testing.T) {
	valid := buildBatteryFrame(batteryEntry(componentLeft, 40, chargeDischarging))

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"marker only", append([]byte{}, markerBattery...)},
		{"wrong marker", append([]byte{0xFF}, valid[1:]...)},
		{"count too high", func() []byte {
			f := append([]byte{}, valid...)
			f[6] = 4
			return f
		}()},
		{"length short of count", valid[:len(valid)-1]},
		{"trailing byte", append(append([]byte{}, valid...), 0x00)},
		{"in-ear marker", buildInEarFrame(0x00, 0x01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if pkt := ParseBattery(tt.frame); pkt != nil {
				t.Errorf("expected rejection, got %+v", pkt)
			}
		})
	}
}

func TestParseBattery_SkipsBadEntries(t *testing.T) {
	badBracket := batteryEntry(componentRight, 60, chargeCharging)
	badBracket[1] = 0x02
	// One bad bracket marker, one unknown component id, one unknown
	// charge code: every entry skipped, frame still recognized.
	frame := buildBatteryFrame(
		badBracket,
		batteryEntry(0x10, 10, chargeCharging),
		batteryEntry(componentLeft, 40, 0x03),
	)
	pkt := ParseBattery(frame)
	if pkt == nil {
		t.Fatalf("frame not recognized: % X", frame)
	}
	if pkt.Left != nil || pkt.Right != nil || pkt.Case != nil {
		t.Errorf("expected all entries skipped, got %+v", pkt)
	}
	if pkt.Primary != PodNone {
		t.Errorf("skipped entries must not establish a primary, got %s", pkt.Primary)
	}
}

func TestParseBattery_PrimaryIsFirstPod(t *testing.T) {
	frame := buildBatteryFrame(
		batteryEntry(componentCase, 90, chargeDischarging),
		batteryEntry(componentRight, 60, chargeDischarging),
		batteryEntry(componentLeft, 40, chargeDischarging),
	)
	pkt := ParseBattery(frame)
	if pkt == nil {
		t.Fatal("frame not recognized")
	}
	// The case entry comes first but can never be primary.
	if pkt.Primary != PodRight {
		t.Errorf("expected primary Right, got %s", pkt.Primary)
	}
}

// ============================================================
// In-Ear Frame Tests
// ============================================================

func TestParseInEar_Codes(t *testing.T) {
	tests := []struct {
		name     string
		code     byte
		expected status.EarState
	}{
		{"in ear", 0x00, status.InEar},
		{"not in ear", 0x01, status.NotInEar},
		{"in case", 0x02, status.InCase},
		{"unknown code", 0x7F, status.EarDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := ParseInEar(buildInEarFrame(tt.code, 0x00))
			if pkt == nil {
				t.Fatal("frame not recognized")
			}
			if pkt.Primary != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, pkt.Primary)
			}
			if pkt.Secondary != status.InEar {
				t.Errorf("expected secondary InEar, got %s", pkt.Secondary)
			}
		})
	}
}

func TestParseInEar_LengthStrict(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"seven bytes", buildInEarFrame(0x00, 0x01)[:7]},
		{"nine bytes", append(buildInEarFrame(0x00, 0x01), 0x00)},
		{"wrong marker", buildBatteryFrame()},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if pkt := ParseInEar(tt.frame); pkt != nil {
				t.Errorf("expected rejection, got %+v", pkt)
			}
		})
	}
}

func TestInEarAttribute(t *testing.T) {
	pkt := ParseInEar(buildInEarFrame(0x00, 0x02)) // primary InEar, secondary InCase
	if pkt == nil {
		t.Fatal("frame not recognized")
	}

	ears, ok := pkt.Attribute(PodLeft)
	if !ok || ears.Left != status.InEar || ears.Right != status.InCase {
		t.Errorf("left-primary attribution wrong: %+v ok=%v", ears, ok)
	}

	ears, ok = pkt.Attribute(PodRight)
	if !ok || ears.Left != status.InCase || ears.Right != status.InEar {
		t.Errorf("right-primary attribution wrong: %+v ok=%v", ears, ok)
	}

	if _, ok := pkt.Attribute(PodNone); ok {
		t.Error("attribution without a primary pod must fail")
	}
}

// ============================================================
// Metadata Frame Tests
// ============================================================

func TestParseMetadata(t *testing.T) {
	pkt := ParseMetadata(buildMetadataFrame("Buddy", "A2", "Acme"))
	if pkt == nil {
		t.Fatal("frame not recognized")
	}
	if pkt.DeviceName != "Buddy" || pkt.ModelNumber != "A2" || pkt.Manufacturer != "Acme" {
		t.Errorf("bad fields: %+v", pkt)
	}
}

func TestParseMetadata_HeaderOnly(t *testing.T) {
	pkt := ParseMetadata(append([]byte{}, markerMetadata...))
	if pkt == nil {
		t.Fatal("header-only frame should parse")
	}
	if pkt.DeviceName != "" || pkt.ModelNumber != "" || pkt.Manufacturer != "" {
		t.Errorf("expected empty strings, got %+v", pkt)
	}
}

func TestParseMetadata_MissingTerminator(t *testing.T) {
	frame := append([]byte{}, markerMetadata...)
	frame = append(frame, []byte("Buddy\x00A2")...) // manufacturer missing entirely
	pkt := ParseMetadata(frame)
	if pkt == nil {
		t.Fatal("frame not recognized")
	}
	if pkt.DeviceName != "Buddy" || pkt.ModelNumber != "A2" || pkt.Manufacturer != "" {
		t.Errorf("bad fields: %+v", pkt)
	}
}

func TestParseMetadata_Rejections(t *testing.T) {
	short := append([]byte{}, markerMetadata[:10]...)
	if pkt := ParseMetadata(short); pkt != nil {
		t.Errorf("short frame accepted: %+v", pkt)
	}
	if pkt := ParseMetadata(buildBatteryFrame()); pkt != nil {
		t.Errorf("battery frame accepted as metadata: %+v", pkt)
	}
}

// ============================================================
// Classification Tests
// ============================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		check func(Frame) bool
	}{
		{
			name:  "metadata",
			frame: buildMetadataFrame("Buddy", "A2", "Acme"),
			check: func(f Frame) bool { _, ok := f.(*MetadataPacket); return ok },
		},
		{
			name:  "battery",
			frame: buildBatteryFrame(batteryEntry(componentLeft, 40, chargeDischarging)),
			check: func(f Frame) bool { _, ok := f.(*BatteryPacket); return ok },
		},
		{
			name:  "in-ear",
			frame: buildInEarFrame(0x00, 0x01),
			check: func(f Frame) bool { _, ok := f.(*InEarPacket); return ok },
		},
		{
			name:  "garbage",
			frame: []byte{0xDE, 0xAD, 0xBE, 0xEF},
			check: func(f Frame) bool { _, ok := f.(Unrecognized); return ok },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f := Classify(tt.frame); !tt.check(f) {
				t.Errorf("wrong classification: %T", f)
			}
		})
	}
}

func TestClassify_UnrecognizedCopiesInput(t *testing.T) {
	buf := []byte{0xDE, 0xAD}
	f := Classify(buf)
	raw, ok := f.(Unrecognized)
	if !ok {
		t.Fatalf("wrong classification: %T", f)
	}
	buf[0] = 0x00
	if !bytes.Equal(raw, []byte{0xDE, 0xAD}) {
		t.Error("unrecognized frame must not alias the caller's buffer")
	}
}
