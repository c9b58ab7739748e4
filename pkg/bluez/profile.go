// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package bluez

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// decisionTimeout bounds how long an inbound stream request may sit
// undecided before it is rejected back to BlueZ.
const decisionTimeout = 30 * time.Second

var errRejected = dbus.NewError("org.bluez.Error.Rejected", nil)

// Request is one inbound RFCOMM stream handed over by BlueZ after a
// profile connection completes. Exactly one of Accept or Reject must be
// called.
type Request struct {
	Device  dbus.ObjectPath
	Address string

	file    *os.File
	decided chan bool
	once    sync.Once
}

// Accept adopts the stream's file descriptor.
func (r *Request) Accept() io.ReadWriteCloser {
	r.once.Do(func() { r.decided <- true })
	return r.file
}

// Reject refuses the stream; BlueZ receives an error reply and the
// descriptor is closed.
func (r *Request) Reject() {
	r.once.Do(func() { r.decided <- false })
}

// Profile is a registered client-role RFCOMM profile. BlueZ delivers
// inbound streams on Requests; a profile connection is the rendezvous of
// a ConnectProfile call and one of these requests.
type Profile struct {
	conn     *Conn
	uuid     string
	path     dbus.ObjectPath
	Requests chan *Request
}

// profileObject is the org.bluez.Profile1 implementation exported for a
// registered profile.
type profileObject struct {
	profile *Profile
}

// NewConnection receives the RFCOMM stream for a completed profile
// connection. It blocks until the daemon accepts or rejects the request,
// which is always an in-memory decision.
func (o *profileObject) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, props map[string]dbus.Variant) *dbus.Error {
	file := os.NewFile(uintptr(fd), "rfcomm")
	req := &Request{
		Device:  device,
		Address: AddressFromPath(device),
		file:    file,
		decided: make(chan bool),
	}

	select {
	case o.profile.Requests <- req:
	case <-time.After(decisionTimeout):
		file.Close()
		return errRejected
	}

	select {
	case accepted := <-req.decided:
		if !accepted {
			file.Close()
			return errRejected
		}
		return nil
	case <-time.After(decisionTimeout):
		file.Close()
		return errRejected
	}
}

// RequestDisconnection is called when BlueZ tears the connection down;
// the owning session notices through stream EOF.
func (o *profileObject) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	return nil
}

// Release is called when BlueZ unregisters the profile.
func (o *profileObject) Release() *dbus.Error {
	return nil
}

// RegisterProfile registers a client-role RFCOMM profile for the given
// service UUID and starts receiving inbound stream requests.
func (c *Conn) RegisterProfile(uuid string) (*Profile, error) {
	path := profileObjectPath(uuid)
	p := &Profile{
		conn:     c,
		uuid:     uuid,
		path:     path,
		Requests: make(chan *Request, 1),
	}

	if err := c.bus.Export(&profileObject{profile: p}, path, profileIface); err != nil {
		return nil, fmt.Errorf("export profile object: %w", err)
	}

	opts := map[string]dbus.Variant{
		"Role":                  dbus.MakeVariant("client"),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
		"AutoConnect":           dbus.MakeVariant(false),
	}
	err := c.bus.Object(busName, dbus.ObjectPath("/org/bluez")).
		Call(managerIface+".RegisterProfile", 0, path, uuid, opts).Err
	if err != nil {
		c.bus.Export(nil, path, profileIface)
		return nil, fmt.Errorf("register profile %s: %w", uuid, err)
	}
	return p, nil
}

// Unregister removes the profile from BlueZ and stops serving requests.
func (p *Profile) Unregister() error {
	err := p.conn.bus.Object(busName, dbus.ObjectPath("/org/bluez")).
		Call(managerIface+".UnregisterProfile", 0, p.path).Err
	p.conn.bus.Export(nil, p.path, profileIface)
	if err != nil {
		return fmt.Errorf("unregister profile %s: %w", p.uuid, err)
	}
	return nil
}

// profileObjectPath derives a unique export path from the service UUID.
func profileObjectPath(uuid string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/mtmn/plants/profile_" + strings.ReplaceAll(uuid, "-", ""))
}
