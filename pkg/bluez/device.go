// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Device is one remote Bluetooth device on an adapter.
type Device struct {
	conn    *Conn
	Address string
	path    dbus.ObjectPath
}

// Connected reads the device's Connected property.
func (d *Device) Connected(ctx context.Context) (bool, error) {
	return d.conn.getBool(ctx, d.path, deviceIface, "Connected")
}

// UUIDs lists the service UUIDs the device advertises. The property is
// sometimes unavailable shortly after discovery; callers treat an error
// as "no services known yet."
func (d *Device) UUIDs(ctx context.Context) ([]string, error) {
	v, err := d.conn.getProp(ctx, d.path, deviceIface, "UUIDs")
	if err != nil {
		return nil, err
	}
	uuids, ok := v.Value().([]string)
	if !ok {
		return nil, fmt.Errorf("UUIDs property is not a string list")
	}
	return uuids, nil
}

// ConnectProfile asks BlueZ to connect the given RFCOMM service. The
// resulting stream arrives through the registered profile's request
// channel, not as a return value.
func (d *Device) ConnectProfile(ctx context.Context, uuid string) error {
	err := d.conn.bus.Object(busName, d.path).
		CallWithContext(ctx, deviceIface+".ConnectProfile", 0, uuid).Err
	if err != nil {
		return fmt.Errorf("connect profile %s on %s: %w", uuid, d.Address, err)
	}
	return nil
}

// ConnectedChanges streams the device's Connected property transitions
// until ctx is cancelled.
func (d *Device) ConnectedChanges(ctx context.Context) (<-chan bool, error) {
	err := d.conn.bus.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(d.path),
	)
	if err != nil {
		return nil, fmt.Errorf("add signal match: %w", err)
	}

	sigs := make(chan *dbus.Signal, 16)
	d.conn.bus.Signal(sigs)

	changes := make(chan bool, 4)
	go func() {
		defer close(changes)
		defer d.conn.bus.RemoveSignal(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				connected, ok := connectedChangeFrom(sig, d.path)
				if !ok {
					continue
				}
				select {
				case changes <- connected:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return changes, nil
}

func connectedChangeFrom(sig *dbus.Signal, path dbus.ObjectPath) (bool, bool) {
	if sig.Name != propsIface+".PropertiesChanged" || sig.Path != path || len(sig.Body) < 2 {
		return false, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false, false
	}
	v, ok := changed["Connected"]
	if !ok {
		return false, false
	}
	connected, ok := v.Value().(bool)
	return connected, ok
}
