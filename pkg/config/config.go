// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 mtmn

// Package config loads the daemon's devices.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// DeviceConfig is one generic peripheral entry. Text, when set, replaces
// the rendered icon for the device.
type DeviceConfig struct {
	MAC        string `toml:"mac"`
	DeviceType string `toml:"device_type"`
	Text       string `toml:"text,omitempty"`
}

// BudsConfig selects the single vendor-RPC earbud peripheral.
type BudsConfig struct {
	MAC string `toml:"mac"`
}

// Config is the parsed devices.toml. A zero Config is valid and makes
// every source idle.
type Config struct {
	Devices map[string]DeviceConfig `toml:"devices"`
	Buds    *BudsConfig             `toml:"buds"`
}

// DeviceNames returns the configured device names in lexical order, so
// rebuilt device lists are deterministic.
func (c *Config) DeviceNames() []string {
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultPath resolves the per-user config location:
// $XDG_CONFIG_HOME/plants/devices.toml, falling back to
// ~/.config/plants/devices.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "plants", "devices.toml"), nil
}

// Load parses the TOML config at path. MAC format is not validated
// here; sources skip entries they cannot use.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
