// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package bus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/mtmn/plants-go/pkg/status"
)

// Subscription follows the daemon's Update signal. Updates is closed
// when ctx is cancelled. Vanished receives one value whenever the daemon
// drops off the bus.
type Subscription struct {
	conn     *dbus.Conn
	Updates  <-chan status.Status
	Vanished <-chan struct{}
}

// Subscribe attaches to the session bus and streams decoded snapshots.
// It succeeds even while the daemon is absent; updates simply start
// arriving once the daemon claims its name.
func Subscribe(ctx context.Context) (*Subscription, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	err = conn.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember("Update"),
		dbus.WithMatchObjectPath(ObjectPath),
	)
	if err != nil {
		return nil, fmt.Errorf("add signal match: %w", err)
	}
	err = conn.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, BusName),
	)
	if err != nil {
		return nil, fmt.Errorf("add name owner match: %w", err)
	}

	sigs := make(chan *dbus.Signal, 16)
	conn.Signal(sigs)

	updates := make(chan status.Status, 16)
	vanished := make(chan struct{}, 1)
	go func() {
		defer close(updates)
		defer conn.RemoveSignal(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-sigs:
				if !ok {
					return
				}
				if nameVanished(sig) {
					select {
					case vanished <- struct{}{}:
					default:
					}
					continue
				}
				s, ok := statusFromSignal(sig)
				if !ok {
					continue
				}
				select {
				case updates <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{conn: conn, Updates: updates, Vanished: vanished}, nil
}

// nameVanished reports whether sig is the daemon's name losing its owner.
func nameVanished(sig *dbus.Signal) bool {
	if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) < 3 {
		return false
	}
	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)
	return name == BusName && newOwner == ""
}

func statusFromSignal(sig *dbus.Signal) (status.Status, bool) {
	if sig.Name != updateSignal || len(sig.Body) < 1 {
		return status.Status{}, false
	}
	raw, ok := sig.Body[0].(string)
	if !ok {
		return status.Status{}, false
	}
	s, err := decodeStatus(raw)
	if err != nil {
		return status.Status{}, false
	}
	return s, true
}

// GetStatus fetches the current snapshot from the daemon. It fails when
// the daemon is not on the bus; callers render the not-connected state
// and keep waiting for signals.
func (s *Subscription) GetStatus(ctx context.Context) (status.Status, error) {
	var raw string
	err := s.conn.Object(BusName, ObjectPath).
		CallWithContext(ctx, Interface+".GetStatus", 0).
		Store(&raw)
	if err != nil {
		return status.Status{}, fmt.Errorf("get status: %w", err)
	}
	return decodeStatus(raw)
}
