// Package buildinfo carries the version stamped at link time.
package buildinfo

import (
	"github.com/prometheus/common/version"
)

const Graffiti = `
                 _     _
 __      __ ___ | |  __| |
 \ \ /\ / // _ \| | / _' |
  \ V  V /|  __/| || (_| |
   \_/\_/  \___||_| \__,_|

`

const Name = "weld"

// Version fields are set with -ldflags "-X github.com/prometheus/common/version.Version=...".
func init() {
	if version.Version == "" {
		version.Version = "v0.0.0"
	}
}

type buildinfo struct{}

func (buildinfo) Tag() string {
	return version.Version
}

func (buildinfo) Name() string {
	return Name
}

func (buildinfo) Time() string {
	return version.BuildDate
}

func (buildinfo) Revision() string {
	return version.Revision
}

// Print returns the multi line version report.
func (buildinfo) Print() string {
	return version.Print(Name)
}

var Info buildinfo
