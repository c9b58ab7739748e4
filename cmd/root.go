// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mtmn/plants-go/pkg/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "plants",
	Short: "Bluetooth battery status daemon",
	Long: `Plants - a Bluetooth battery status aggregation daemon.

The daemon fuses three data sources into one status snapshot: the AirPods
accessory protocol over RFCOMM, the buds vendor RPC protocol over RFCOMM,
and BlueZ battery properties for any other paired peripheral. Snapshots are
published over the session bus as org.mtmn.Plants; the remaining commands
are clients of that service.

Typical wiring:
  plants daemon        run the aggregation daemon (a user service)
  plants status        one waybar JSON line per update, for the bar itself
  plants monitor       live terminal view of the current snapshot
  plants relay         republish rendered output over HTTP/WebSocket

Devices are configured in $XDG_CONFIG_HOME/plants/devices.toml.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to devices.toml (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	log.SetLevel(level)

	switch logFormat {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", logFormat)
	}
	return log, nil
}

// loadConfig loads devices.toml from --config or the default location.
// A missing file is reported but yields an empty config: sources with
// nothing configured simply do no work.
func loadConfig(log logrus.FieldLogger) *config.Config {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			log.WithError(err).Error("could not resolve config path")
			return &config.Config{}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Error("could not load config")
		return &config.Config{}
	}
	return cfg
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
