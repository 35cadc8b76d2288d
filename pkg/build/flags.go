// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the binary at link time:
//
//	go build -ldflags "-X chordscope/pkg/build.buildVersion=0.3.0 \
//	    -X chordscope/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X chordscope/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry no ldflags and fall back to "dev" values, so the
// CLI can always report a version string.
package build

import (
	"errors"
	"fmt"
)

const (
	defaultName        = "chordscope"
	defaultDescription = "Live chord and pitch-class profile analyzer"
	devValue           = "dev"
)

// Info is the immutable build metadata returned by GetBuildFlags.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the one-line version banner used by the CLI.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        devValue,
		Commit:      devValue,
		Version:     devValue,
	}
)

// Initialize copies the ldflags variables into the build info. A release
// build must set version and commit together; setting only one of them is
// reported as an error because the banner would be misleading.
func Initialize() error {
	if (buildVersion == "") != (buildCommit == "") {
		return errors.New("buildVersion and buildCommit must be set together")
	}

	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() Info {
	return *buildFlags
}

// IsDev reports whether the binary was built without release ldflags.
func IsDev() bool {
	return buildFlags.Version == devValue
}
