// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mtmn/plants-go/pkg/bus"
	"github.com/mtmn/plants-go/pkg/daemon"
	"github.com/mtmn/plants-go/pkg/status"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the battery aggregation daemon",
	Long: `Run the battery aggregation daemon.

The daemon claims org.mtmn.Plants on the session bus and keeps publishing
status snapshots until terminated. Run it as a user service; the other
commands talk to it over the bus.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		cfg := loadConfig(log)

		store := status.NewStore()
		svc, err := bus.NewService(store, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("starting daemon")
		err = daemon.New(store, cfg, svc, log).Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info("shutting down")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
