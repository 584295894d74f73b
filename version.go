// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package monomaker

import (
	"fmt"
	"runtime"
)

// Version information.
// These values can be overridden at build time using -ldflags.
//
// Example:
//
//	go build -ldflags "-X github.com/monomaker/monomaker.GitCommit=$(git rev-parse HEAD)"
var (
	// Version is the current module version following semantic versioning.
	Version = "0.1.0"

	// GitCommit is the git commit SHA of the build.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// VersionInfo returns detailed version information as a map.
func VersionInfo() map[string]string {
	return map[string]string{
		"version":   Version,
		"gitCommit": GitCommit,
		"buildDate": BuildDate,
		"goVersion": runtime.Version(),
	}
}

// VersionString returns a formatted version string.
func VersionString() string {
	return fmt.Sprintf("monomaker version v%s (commit: %s, built: %s)",
		Version, GitCommit, BuildDate)
}

// ShortVersion returns just the version number without prefix.
func ShortVersion() string {
	return Version
}
