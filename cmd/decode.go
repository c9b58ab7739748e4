// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtmn/plants-go/pkg/aap"
)

var decodeCmd = &cobra.Command{
	Use:   "decode HEX...",
	Short: "Decode captured accessory-protocol frames",
	Long: `Decode captured accessory-protocol frames.

Each argument is one frame as a hex string ("04 00 04 00 ..." or
"04000400..."). Frames are classified and pretty-printed the same way
the daemon interprets them, which makes btmon captures legible.

Exits non-zero when any frame fails to parse or no parser recognizes it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed bool
		for _, arg := range args {
			data, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
			if err != nil {
				fmt.Printf("INVALID HEX: %v\n", err)
				failed = true
				continue
			}
			frame := aap.Classify(data)
			fmt.Print(aap.FormatFrame(frame))
			if _, ok := frame.(aap.Unrecognized); ok {
				failed = true
			}
		}
		if failed {
			return fmt.Errorf("some frames could not be decoded")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
