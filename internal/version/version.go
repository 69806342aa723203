// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package version reports the build version of the agent binaries.
package version

import "fmt"

// Set via ldflags during build.
var (
	Version   = "development"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns the bare version.
func String() string { return Version }

// Long returns the version with commit and build metadata.
func Long() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}
