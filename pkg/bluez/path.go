// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package bluez

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

// DeviceObjectPath converts an adapter name and a MAC address like
// "AA:BB:CC:DD:EE:FF" into "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func DeviceObjectPath(adapterName, addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath("/org/bluez/" + adapterName + "/dev_" + escaped)
}

// AddressFromPath extracts the MAC address from a BlueZ device object
// path, or returns "" when the path is not a device path.
func AddressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	addr := strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
	if len(addr) != 17 {
		return ""
	}
	return addr
}

// adapterNameFromPath extracts "hci0" from "/org/bluez/hci0".
func adapterNameFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return s
	}
	return s[i+1:]
}
