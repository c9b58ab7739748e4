// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtmn/plants-go/pkg/status"
)

func comp(level uint8, state status.BatteryState) *status.Component {
	return &status.Component{Level: level, Status: state}
}

func TestNotConnected(t *testing.T) {
	o := NotConnected()
	assert.Equal(t, iconNoDaemon, o.Text)
	assert.Equal(t, "Daemon not active", o.Tooltip)
	assert.Equal(t, "disconnected", o.Class)
	assert.Nil(t, o.Percentage)
}

func TestInvalidSnapshot(t *testing.T) {
	o := FromStatus(status.New())
	assert.Equal(t, iconPodsAbsent, o.Text)
	assert.Empty(t, o.Tooltip)
	assert.Equal(t, "disconnected", o.Class)
	assert.Nil(t, o.Percentage)
}

func TestPodsOnly(t *testing.T) {
	s := status.New()
	s.Metadata = &status.Metadata{Name: "Buddy", Model: "A2"}
	s.Components.Left = comp(40, status.Discharging)
	s.Components.Right = comp(60, status.Charging)
	s.Ear = status.Ears{Left: status.InEar, Right: status.InCase}

	o := FromStatus(s)
	assert.Equal(t, "󱡏 40%", o.Text)
	assert.Equal(t, "connected", o.Class)
	require.NotNil(t, o.Percentage)
	assert.InDelta(t, 0.40, *o.Percentage, 0.001)

	lines := strings.Split(o.Tooltip, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Buddy (A2)", lines[0])
	assert.Equal(t, iconEarInEar+" Left: 40%", lines[1])
	assert.Equal(t, iconCharging+" Right: 60%", lines[2])
}

func TestLowBattery(t *testing.T) {
	s := status.New()
	s.Components.Left = comp(10, status.Discharging)

	o := FromStatus(s)
	assert.Equal(t, "󱡏󱃍 10%", o.Text)
	assert.Equal(t, "connected-low", o.Class)
	require.NotNil(t, o.Percentage)
	assert.InDelta(t, 0.10, *o.Percentage, 0.001)
}

func TestDeviceIconsAndMinimum(t *testing.T) {
	s := status.New()
	s.Components.Left = comp(80, status.Discharging)
	s.Devices = []status.Device{
		{Name: "headphones", Battery: 14, Text: "H", Status: status.Discharging},
		{Name: "keyboard", Battery: 90, Status: status.Discharging},
	}

	o := FromStatus(s)
	// The device minimum drives the class even when pods are healthy.
	assert.Equal(t, "connected-low", o.Class)
	assert.Equal(t, "󱡏󱃍 80% H 14% "+iconBluetooth+" 90%", o.Text)
	require.NotNil(t, o.Percentage)
	assert.InDelta(t, 0.14, *o.Percentage, 0.001)

	assert.Contains(t, o.Tooltip, "H headphones: 14%")
	assert.Contains(t, o.Tooltip, iconBluetooth+" keyboard: 90%")
}

func TestChargingPodsOnlyHaveNoPercentage(t *testing.T) {
	s := status.New()
	s.Components.Left = comp(50, status.Charging)
	s.Components.Case = comp(70, status.Charging)

	o := FromStatus(s)
	// Nothing discharging: bare pods icon, no percentage.
	assert.Equal(t, iconPods, o.Text)
	assert.Equal(t, "connected", o.Class)
	assert.Nil(t, o.Percentage)
}

func TestDisconnectedComponentSkipped(t *testing.T) {
	s := status.New()
	s.Components.Left = comp(50, status.Discharging)
	s.Components.Right = comp(0, status.Disconnected)

	o := FromStatus(s)
	assert.NotContains(t, o.Tooltip, "Right")
}

func TestJSONShape(t *testing.T) {
	s := status.New()
	s.Components.Left = comp(50, status.Discharging)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(FromStatus(s).String()), &decoded))
	assert.Contains(t, decoded, "text")
	assert.Contains(t, decoded, "tooltip")
	assert.Contains(t, decoded, "class")
	assert.Contains(t, decoded, "percentage")

	// Invalid snapshots omit tooltip and percentage entirely.
	decoded = nil
	require.NoError(t, json.Unmarshal([]byte(FromStatus(status.New()).String()), &decoded))
	assert.NotContains(t, decoded, "tooltip")
	assert.NotContains(t, decoded, "percentage")
}
