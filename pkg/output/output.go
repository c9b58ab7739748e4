// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package output renders a status snapshot into the one-line JSON object
// waybar consumes. Rendering is a pure function of the snapshot.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mtmn/plants-go/pkg/status"
)

// lowThreshold is the battery level at or under which the low marker and
// the connected-low class kick in.
const lowThreshold = 15

// noLevel marks "no discharging battery observed".
const noLevel = 255

// Icons used in text and tooltip.
const (
	iconPods         = "󱡏"
	iconPodsAbsent   = "󱡐"
	iconNoDaemon     = "󰟦"
	iconLow          = "󱃍"
	iconCharging     = "󰢝"
	iconBluetooth    = "󰂯"
	iconEarInEar     = "󱡏"
	iconEarNotInEar  = "󱡒"
	iconEarInCase    = "󱡑"
)

// Output is the waybar JSON line.
type Output struct {
	Text       string   `json:"text"`
	Tooltip    string   `json:"tooltip,omitempty"`
	Class      string   `json:"class,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// String renders the output as its JSON line.
func (o Output) String() string {
	b, err := json.Marshal(o)
	if err != nil {
		// Output contains only marshalable fields.
		panic(err)
	}
	return string(b)
}

// NotConnected is the line shown while the daemon is unreachable.
func NotConnected() Output {
	return Output{
		Text:    iconNoDaemon,
		Tooltip: "Daemon not active",
		Class:   "disconnected",
	}
}

// FromStatus renders a snapshot.
func FromStatus(s status.Status) Output {
	if !s.Valid() {
		return Output{Text: iconPodsAbsent, Class: "disconnected"}
	}

	tooltip := buildTooltip(s)

	minLevel := uint8(noLevel)
	minPods, podsOK := s.MinPods()
	if podsOK {
		minLevel = minPods
	}
	for _, d := range s.Devices {
		if d.Status == status.Discharging && d.Battery < minLevel {
			minLevel = d.Battery
		}
	}

	isLow := minLevel <= lowThreshold
	lowMark := ""
	if isLow {
		lowMark = iconLow
	}

	var parts []string
	if podsOK {
		parts = append(parts, fmt.Sprintf("%s%s %d%%", iconPods, lowMark, minPods))
	}
	for _, d := range s.Devices {
		icon, ok := deviceIcon(d)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d%%", icon, d.Battery))
	}

	text := strings.Join(parts, " ")
	if len(parts) == 0 {
		text = iconPods + lowMark
	}

	class := "connected"
	if isLow {
		class = "connected-low"
	}

	out := Output{Text: text, Tooltip: tooltip, Class: class}
	if minLevel != noLevel {
		pct := float64(minLevel) / 100.0
		out.Percentage = &pct
	}
	return out
}

func buildTooltip(s status.Status) string {
	var b strings.Builder

	if s.Metadata != nil {
		fmt.Fprintf(&b, "%s (%s)\n", s.Metadata.Name, s.Metadata.Model)
	}

	parts := []struct {
		name string
		comp *status.Component
		ear  status.EarState
	}{
		{"Left", s.Components.Left, s.Ear.Left},
		{"Right", s.Components.Right, s.Ear.Right},
		{"Case", s.Components.Case, status.EarDisconnected},
	}
	for _, p := range parts {
		if p.comp == nil {
			continue
		}
		var icon string
		switch p.comp.Status {
		case status.Charging:
			icon = iconCharging
		case status.Discharging:
			icon = earIcon(p.ear)
		default:
			continue
		}
		fmt.Fprintf(&b, "%s %s: %d%%\n", icon, p.name, p.comp.Level)
	}

	for _, d := range s.Devices {
		icon, ok := deviceIcon(d)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s %s: %d%%\n", icon, d.Name, d.Battery)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func earIcon(e status.EarState) string {
	switch e {
	case status.InEar:
		return iconEarInEar
	case status.NotInEar:
		return iconEarNotInEar
	case status.InCase:
		return iconEarInCase
	default:
		return ""
	}
}

func deviceIcon(d status.Device) (string, bool) {
	if d.Text != "" {
		return d.Text, true
	}
	switch d.Status {
	case status.Charging:
		return iconCharging, true
	case status.Discharging:
		return iconBluetooth, true
	default:
		return "", false
	}
}
