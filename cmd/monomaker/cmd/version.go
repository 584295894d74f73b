// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	monomaker "github.com/monomaker/monomaker"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version of the monomaker CLI tool.

Shows the current version number, git commit SHA, and build date.`,
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")

		if short {
			fmt.Println(monomaker.ShortVersion())
			return
		}

		fmt.Println(monomaker.VersionString())
		fmt.Printf("\nGo version: %s\n", monomaker.VersionInfo()["goVersion"])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("short", "s", false, "Print only the version number")
}
