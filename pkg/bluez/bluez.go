// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package bluez wraps the BlueZ D-Bus surface the daemon needs: adapter
// and device lookups, RFCOMM profile registration in client role, and
// the Battery1 percentage property.
package bluez

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.bluez"
	rootPath     = dbus.ObjectPath("/")
	adapterIface = "org.bluez.Adapter1"
	deviceIface  = "org.bluez.Device1"
	batteryIface = "org.bluez.Battery1"
	profileIface = "org.bluez.Profile1"
	managerIface = "org.bluez.ProfileManager1"
	propsIface   = "org.freedesktop.DBus.Properties"
	omIface      = "org.freedesktop.DBus.ObjectManager"
)

// ErrNoAdapter is returned when no Bluetooth adapter is on the bus.
var ErrNoAdapter = errors.New("no bluetooth adapter found")

// managedObjects is the ObjectManager.GetManagedObjects result shape.
type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Conn is a BlueZ session on the system bus.
type Conn struct {
	bus *dbus.Conn
}

// Connect opens the system bus and verifies BlueZ is present.
func Connect() (*Conn, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var owner string
	if err := bus.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, busName).Store(&owner); err != nil {
		return nil, fmt.Errorf("org.bluez not found on system bus: %w", err)
	}
	return &Conn{bus: bus}, nil
}

// Close releases the bus connection.
func (c *Conn) Close() error {
	return c.bus.Close()
}

func (c *Conn) managedObjects(ctx context.Context) (managedObjects, error) {
	var objs managedObjects
	err := c.bus.Object(busName, rootPath).
		CallWithContext(ctx, omIface+".GetManagedObjects", 0).
		Store(&objs)
	if err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return objs, nil
}

func (c *Conn) getProp(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	err := c.bus.Object(busName, path).
		CallWithContext(ctx, propsIface+".Get", 0, iface, prop).
		Store(&v)
	return v, err
}

func (c *Conn) setProp(path dbus.ObjectPath, iface, prop string, val interface{}) error {
	return c.bus.Object(busName, path).
		Call(propsIface+".Set", 0, iface, prop, dbus.MakeVariant(val)).Err
}

func (c *Conn) getBool(ctx context.Context, path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := c.getProp(ctx, path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}

// BatteryPercentage reads org.bluez.Battery1.Percentage for a device,
// addressed by adapter name and MAC.
func (c *Conn) BatteryPercentage(ctx context.Context, adapterName, addr string) (uint8, error) {
	path := DeviceObjectPath(adapterName, addr)
	v, err := c.getProp(ctx, path, batteryIface, "Percentage")
	if err != nil {
		return 0, fmt.Errorf("battery percentage for %s: %w", addr, err)
	}
	pct, ok := v.Value().(byte)
	if !ok {
		return 0, fmt.Errorf("battery percentage for %s is not a byte", addr)
	}
	return pct, nil
}

// dbusErrorIs reports whether err is a D-Bus error with the given name.
func dbusErrorIs(err error, name string) bool {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name == name
	}
	return false
}

// IsInProgress reports whether err is BlueZ's "operation already in
// progress" reply. Connect loops back off longer on it.
func IsInProgress(err error) bool {
	return dbusErrorIs(err, "org.bluez.Error.InProgress")
}
