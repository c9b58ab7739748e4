// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal view of the current status",
	Long: `Live terminal view of the current status.

Shows the daemon's snapshot as it changes: earbud component levels with
charge state and wear position, plus every generic device the daemon is
tracking. While no daemon is reachable it keeps waiting for one.

Press 'q' to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sub, initial, reachable, err := attach(ctx)
		if err != nil {
			return err
		}

		p := tea.NewProgram(initialMonitorModel(initial, reachable), tea.WithAltScreen())

		go func() {
			for {
				select {
				case s, ok := <-sub.Updates:
					if !ok {
						p.Send(monitorDoneMsg{})
						return
					}
					p.Send(monitorStatusMsg(s))
				case <-sub.Vanished:
					p.Send(monitorVanishedMsg{})
				}
			}
		}()

		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
