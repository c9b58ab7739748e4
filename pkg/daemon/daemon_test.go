// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/mtmn/plants-go/pkg/config"
	"github.com/mtmn/plants-go/pkg/status"
)

func newTestDaemon(cfg *config.Config) (*Daemon, *recorder) {
	store := status.NewStore()
	rec := &recorder{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(store, cfg, rec, log), rec
}

func TestRunOutlivesUnconfiguredSources(t *testing.T) {
	d, rec := newTestDaemon(&config.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// With nothing configured every source finishes immediately, but
	// the daemon must keep running until cancelled.
	select {
	case err := <-done:
		t.Fatalf("Run returned while context was live: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	// The initial empty snapshot was still published.
	require.NotEmpty(t, rec.all())
}
