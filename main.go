// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package main

import (
	"os"

	"github.com/mtmn/plants-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
