// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mtmn/plants-go/pkg/output"
	"github.com/mtmn/plants-go/pkg/status"
)

var statusRaw bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Stream waybar JSON lines from the daemon",
	Long: `Stream waybar JSON lines from the daemon.

Prints one JSON object per line: the current state immediately, then one
line per daemon update. Waybar consumes this directly as a custom module
with "exec": "plants status". When the daemon is not running, a
not-connected line is printed and the command keeps waiting for one to
appear.

With --raw the full status snapshot is printed instead of the rendered
waybar object.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sub, initial, reachable, err := attach(ctx)
		if err != nil {
			return err
		}

		if reachable {
			if err := printStatus(initial); err != nil {
				return err
			}
		} else if !statusRaw {
			fmt.Println(output.NotConnected())
		}

		for {
			select {
			case s, ok := <-sub.Updates:
				if !ok {
					return nil
				}
				if err := printStatus(s); err != nil {
					return err
				}
			case <-sub.Vanished:
				if !statusRaw {
					fmt.Println(output.NotConnected())
				}
			}
		}
	},
}

func printStatus(s status.Status) error {
	if statusRaw {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Println(output.FromStatus(s))
	return nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusRaw, "raw", false, "Print raw status snapshots instead of waybar output")
	rootCmd.AddCommand(statusCmd)
}
