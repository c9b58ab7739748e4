// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package pbp

import (
	"context"
	"fmt"

	"github.com/mtmn/plants-go/pkg/status"
)

// chargeCharging is the runtime-info charge state meaning "charging".
// Every other state code renders as discharging.
const chargeCharging = 2

// BatteryReading is one part's battery state in a runtime-info message.
type BatteryReading struct {
	Level uint8 `cbor:"1,keyasint,omitempty"`
	State uint8 `cbor:"2,keyasint,omitempty"`
}

// BatteryInfo carries per-part readings; absent parts are nil.
type BatteryInfo struct {
	Left  *BatteryReading `cbor:"1,keyasint,omitempty"`
	Right *BatteryReading `cbor:"2,keyasint,omitempty"`
	Case  *BatteryReading `cbor:"3,keyasint,omitempty"`
}

// Placement reports whether each bud sits in the case.
type Placement struct {
	LeftInCase  bool `cbor:"1,keyasint,omitempty"`
	RightInCase bool `cbor:"2,keyasint,omitempty"`
}

// RuntimeInfo is one message on the runtime-info stream. Every field is
// optional.
type RuntimeInfo struct {
	Battery   *BatteryInfo `cbor:"1,keyasint,omitempty"`
	Placement *Placement   `cbor:"2,keyasint,omitempty"`
}

// DecodeRuntimeInfo decodes a stream message payload.
func DecodeRuntimeInfo(payload []byte) (*RuntimeInfo, error) {
	var info RuntimeInfo
	if err := decMode.Unmarshal(payload, &info); err != nil {
		return nil, fmt.Errorf("decode runtime info: %w", err)
	}
	return &info, nil
}

// ToStatus maps a runtime-info message onto the snapshot's component and
// ear field-groups. Placement is attributed only for sides whose battery
// info is present; sides without battery info stay disconnected.
func (info *RuntimeInfo) ToStatus() (status.Components, status.Ears) {
	var components status.Components
	ears := status.DisconnectedEars()

	if info.Battery == nil {
		return components, ears
	}

	if c := info.Battery.Case; c != nil {
		components.Case = &status.Component{Level: c.Level, Status: chargeState(c.State)}
	}
	if l := info.Battery.Left; l != nil {
		components.Left = &status.Component{Level: l.Level, Status: chargeState(l.State)}
		if p := info.Placement; p != nil {
			ears.Left = placementState(p.LeftInCase)
		}
	}
	if r := info.Battery.Right; r != nil {
		components.Right = &status.Component{Level: r.Level, Status: chargeState(r.State)}
		if p := info.Placement; p != nil {
			ears.Right = placementState(p.RightInCase)
		}
	}

	return components, ears
}

func chargeState(code uint8) status.BatteryState {
	if code == chargeCharging {
		return status.Charging
	}
	return status.Discharging
}

func placementState(inCase bool) status.EarState {
	if inCase {
		return status.InCase
	}
	return status.InEar
}

// channelResolution is the response payload of the resolve-channel call.
type channelResolution struct {
	Channel uint32 `cbor:"1,keyasint,omitempty"`
}

// ResolveChannel asks the control channel for the device's logical
// service channel. It must complete before any device service call.
func ResolveChannel(ctx context.Context, c *Client) (uint32, error) {
	payload, err := c.Call(ctx, ControlChannel, ServiceChannelControl, MethodResolveChannel, nil)
	if err != nil {
		return 0, fmt.Errorf("resolve channel: %w", err)
	}
	var res channelResolution
	if err := decMode.Unmarshal(payload, &res); err != nil {
		return 0, fmt.Errorf("decode channel resolution: %w", err)
	}
	return res.Channel, nil
}

// Service issues device-info calls on a resolved channel.
type Service struct {
	client  *Client
	channel uint32
}

// NewService binds a client to a resolved channel.
func NewService(client *Client, channel uint32) *Service {
	return &Service{client: client, channel: channel}
}

// SubscribeRuntimeInfo opens the runtime-info server stream.
func (s *Service) SubscribeRuntimeInfo(buf int) (*Stream, error) {
	stream, err := s.client.Subscribe(s.channel, ServiceDeviceInfo, MethodSubscribeRuntime, nil, buf)
	if err != nil {
		return nil, fmt.Errorf("subscribe runtime info: %w", err)
	}
	return stream, nil
}
