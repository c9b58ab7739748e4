// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Adapter is one Bluetooth adapter, usually "hci0".
type Adapter struct {
	conn *Conn
	Name string
	path dbus.ObjectPath
}

// DefaultAdapter returns the first adapter in BlueZ's object tree.
func (c *Conn) DefaultAdapter(ctx context.Context) (*Adapter, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	for path, ifaces := range objs {
		if _, ok := ifaces[adapterIface]; ok {
			return &Adapter{conn: c, Name: adapterNameFromPath(path), path: path}, nil
		}
	}
	return nil, ErrNoAdapter
}

// SetPowered switches the adapter radio on or off.
func (a *Adapter) SetPowered(on bool) error {
	if err := a.conn.setProp(a.path, adapterIface, "Powered", on); err != nil {
		return fmt.Errorf("set %s powered: %w", a.Name, err)
	}
	return nil
}

// DeviceAddresses lists the MAC addresses of every device BlueZ knows on
// this adapter, paired or merely seen.
func (a *Adapter) DeviceAddresses(ctx context.Context) ([]string, error) {
	objs, err := a.conn.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	var addrs []string
	for path, ifaces := range objs {
		if _, ok := ifaces[deviceIface]; !ok {
			continue
		}
		if addr := AddressFromPath(path); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}

// Device returns a handle for the device with the given MAC on this
// adapter. The device need not exist yet; calls on a missing device fail.
func (a *Adapter) Device(addr string) *Device {
	return &Device{
		conn:    a.conn,
		Address: addr,
		path:    DeviceObjectPath(a.Name, addr),
	}
}

// EventKind classifies an adapter event.
type EventKind int

const (
	DeviceAdded EventKind = iota
	DeviceRemoved
	PropertyChanged
)

// Event is one adapter-level change: a device appeared, vanished, or had
// a property change anywhere under /org/bluez.
type Event struct {
	Kind    EventKind
	Address string
}

// Events streams adapter events until ctx is cancelled. The channel is
// closed on cancellation.
func (a *Adapter) Events(ctx context.Context) (<-chan Event, error) {
	opts := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(omIface), dbus.WithMatchMember("InterfacesAdded")},
		{dbus.WithMatchInterface(omIface), dbus.WithMatchMember("InterfacesRemoved")},
		{dbus.WithMatchInterface(propsIface), dbus.WithMatchMember("PropertiesChanged"), dbus.WithMatchPathNamespace(dbus.ObjectPath("/org/bluez"))},
	}
	for _, o := range opts {
		if err := a.conn.bus.AddMatchSignalContext(ctx, o...); err != nil {
			return nil, fmt.Errorf("add signal match: %w", err)
		}
	}

	sigs := make(chan *dbus.Signal, 16)
	a.conn.bus.Signal(sigs)

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer a.conn.bus.RemoveSignal(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				ev, ok := adapterEventFrom(sig)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				default:
					// Consumers debounce; dropping under a storm is fine.
				}
			}
		}
	}()
	return events, nil
}

func adapterEventFrom(sig *dbus.Signal) (Event, bool) {
	switch sig.Name {
	case omIface + ".InterfacesAdded":
		if len(sig.Body) < 1 {
			return Event{}, false
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		return Event{Kind: DeviceAdded, Address: AddressFromPath(path)}, true

	case omIface + ".InterfacesRemoved":
		if len(sig.Body) < 1 {
			return Event{}, false
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		return Event{Kind: DeviceRemoved, Address: AddressFromPath(path)}, true

	case propsIface + ".PropertiesChanged":
		return Event{Kind: PropertyChanged, Address: AddressFromPath(sig.Path)}, true
	}
	return Event{}, false
}
