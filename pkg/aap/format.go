// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package aap

import (
	"fmt"
	"strings"

	"github.com/mtmn/plants-go/pkg/status"
)

// FormatFrame renders a classified frame into a human-readable string.
func FormatFrame(f Frame) string {
	switch f := f.(type) {
	case *MetadataPacket:
		return fmt.Sprintf("METADATA\n  Name: %q\n  Model: %q\n  Manufacturer: %q\n",
			f.DeviceName, f.ModelNumber, f.Manufacturer)

	case *BatteryPacket:
		var b strings.Builder
		fmt.Fprintf(&b, "BATTERY primary=%s\n", f.Primary)
		parts := []struct {
			name string
			comp *status.Component
		}{
			{"Left", f.Left},
			{"Right", f.Right},
			{"Case", f.Case},
		}
		for _, p := range parts {
			if p.comp == nil {
				continue
			}
			fmt.Fprintf(&b, "  %s: %d%% %s\n", p.name, p.comp.Level, p.comp.Status)
		}
		return b.String()

	case *InEarPacket:
		return fmt.Sprintf("EAR_DETECTION\n  Primary: %s\n  Secondary: %s\n",
			f.Primary, f.Secondary)

	case Unrecognized:
		return fmt.Sprintf("UNRECOGNIZED (%d bytes)\n  % X\n", len(f), []byte(f))

	default:
		return "UNKNOWN\n"
	}
}
