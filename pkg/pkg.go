//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

// Version is the semantic version of the pyparam module embedded at build
// time. It is printed by the CLI when users invoke the version flag.
//
//go:embed VERSION
var Version string

const (
	// Name is the canonical command and module identifier used across the
	// project. For example, it appears in help text and default config paths.
	Name = "pyparam"
	// Description is a short, human-readable summary of the project used in
	// help output and documentation.
	Description = "Template parameter extraction and compilation for Python sources"
)

// SemVer returns the embedded version string without surrounding whitespace.
func SemVer() string { return strings.TrimSpace(Version) }
