// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtmn/plants-go/pkg/bluez"
)

const devicesQueryTimeout = 5 * time.Second

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List configured devices and their live state",
	Long: `List configured devices and their live state.

Reads devices.toml and, for each entry, queries BlueZ directly for the
current connection state and battery percentage. This bypasses the daemon
entirely and is the quickest way to check why a configured device is not
showing up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		cfg := loadConfig(log)

		if len(cfg.Devices) == 0 && cfg.Buds == nil {
			fmt.Println("no devices configured")
			return nil
		}

		conn, err := bluez.Connect()
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), devicesQueryTimeout)
		defer cancel()

		adapter, err := conn.DefaultAdapter(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMAC\tTYPE\tCONNECTED\tBATTERY")

		for _, name := range cfg.DeviceNames() {
			dc := cfg.Devices[name]
			connected, battery := queryDevice(ctx, conn, adapter, dc.MAC)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, dc.MAC, dc.DeviceType, connected, battery)
		}
		if cfg.Buds != nil {
			connected, battery := queryDevice(ctx, conn, adapter, cfg.Buds.MAC)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", "buds", cfg.Buds.MAC, "buds", connected, battery)
		}
		return w.Flush()
	},
}

// queryDevice resolves connection state and battery percentage for one
// MAC, rendering failures as "-" so the table always fills.
func queryDevice(ctx context.Context, conn *bluez.Conn, adapter *bluez.Adapter, mac string) (connected, battery string) {
	connected, battery = "-", "-"

	on, err := adapter.Device(mac).Connected(ctx)
	if err != nil {
		return connected, battery
	}
	connected = "no"
	if on {
		connected = "yes"
	}

	pct, err := conn.BatteryPercentage(ctx, adapter.Name, mac)
	if err != nil {
		return connected, battery
	}
	battery = fmt.Sprintf("%d%%", pct)
	return connected, battery
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
