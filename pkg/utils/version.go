// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

// Build metadata, set with -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString is the one-line build description.
func VersionString() string {
	return fmt.Sprintf("engram %s (%s, built %s)", Version, Sha, Buildtime)
}
