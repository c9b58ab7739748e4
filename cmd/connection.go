// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"context"
	"time"

	"github.com/mtmn/plants-go/pkg/bus"
	"github.com/mtmn/plants-go/pkg/status"
)

// initialFetchTimeout bounds the GetStatus call made right after
// subscribing. The daemon may simply not be running.
const initialFetchTimeout = 2 * time.Second

// attach subscribes to the daemon's updates and fetches the current
// snapshot once. reachable is false when the daemon is not on the bus;
// callers render a disconnected state and wait for signals, which start
// flowing as soon as a daemon appears.
func attach(ctx context.Context) (sub *bus.Subscription, initial status.Status, reachable bool, err error) {
	sub, err = bus.Subscribe(ctx)
	if err != nil {
		return nil, status.Status{}, false, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, initialFetchTimeout)
	defer cancel()

	initial, ferr := sub.GetStatus(fetchCtx)
	if ferr != nil {
		return sub, status.Status{}, false, nil
	}
	return sub, initial, true, nil
}
