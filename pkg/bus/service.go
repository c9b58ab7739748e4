// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package bus is the daemon's publish transport: a session-bus service
// emitting one Update signal per snapshot, and the client-side
// subscription helper the tools use to follow it.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/sirupsen/logrus"

	"github.com/mtmn/plants-go/pkg/status"
)

// D-Bus names of the publish service.
const (
	BusName    = "org.mtmn.Plants"
	ObjectPath = dbus.ObjectPath("/org/mtmn/Plants")
	Interface  = "org.mtmn.Plants"
)

const updateSignal = Interface + ".Update"

// encodeStatus renders the snapshot into its wire form, the JSON string
// carried by both the signal and GetStatus.
func encodeStatus(s status.Status) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode status: %w", err)
	}
	return string(b), nil
}

// decodeStatus parses the wire form back into a snapshot.
func decodeStatus(raw string) (status.Status, error) {
	var s status.Status
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return status.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return s, nil
}

// serviceObject answers GetStatus from the canonical store.
type serviceObject struct {
	store *status.Store
}

func (o *serviceObject) GetStatus() (string, *dbus.Error) {
	raw, err := encodeStatus(o.store.Snapshot())
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return raw, nil
}

// Service owns the claimed bus name and implements status.Publisher by
// emitting the Update signal. Publishing is fire-and-forget; emit
// failures are logged and dropped.
type Service struct {
	conn *dbus.Conn
	log  logrus.FieldLogger
}

// introspection is the exported interface description.
var introspection = introspect.Node{
	Name: string(ObjectPath),
	Interfaces: []introspect.Interface{
		introspect.IntrospectData,
		{
			Name: Interface,
			Methods: []introspect.Method{
				{Name: "GetStatus", Args: []introspect.Arg{{Name: "status", Type: "s", Direction: "out"}}},
			},
			Signals: []introspect.Signal{
				{Name: "Update", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
			},
		},
	},
}

// NewService connects to the session bus, claims the service name and
// exports the interface. This is the daemon's one fatal startup path:
// without the publish transport there is nothing to run for.
func NewService(store *status.Store, log logrus.FieldLogger) (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	obj := &serviceObject{store: store}
	if err := conn.Export(obj, ObjectPath, Interface); err != nil {
		return nil, fmt.Errorf("export service object: %w", err)
	}
	if err := conn.Export(introspect.NewIntrospectable(&introspection), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("bus name %s already taken", BusName)
	}

	return &Service{conn: conn, log: log.WithField("component", "bus")}, nil
}

// Publish emits the snapshot as an Update signal.
func (s *Service) Publish(st status.Status) {
	raw, err := encodeStatus(st)
	if err != nil {
		s.log.WithError(err).Error("failed to encode snapshot")
		return
	}
	if err := s.conn.Emit(ObjectPath, updateSignal, raw); err != nil {
		s.log.WithError(err).Warn("failed to emit update signal")
	}
}

var _ status.Publisher = (*Service)(nil)
