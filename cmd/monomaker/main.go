// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Command monomaker converts a meta-repository into a monorepo, preserving
// the history of every branch that matters across the meta-repo and its
// first-layer submodules.
package main

import (
	"os"

	"github.com/monomaker/monomaker/cmd/monomaker/cmd"
)

// version is set during build time via ldflags.
var version = "dev"

func main() {
	os.Exit(cmd.Execute(version))
}
