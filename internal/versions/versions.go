// Package versions compares release tags as semantic versions.
package versions

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ParseRelease parses a release tag. A leading "v" and partial versions
// ("1.2") are accepted.
func ParseRelease(tag string) (*semver.Version, error) {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return nil, fmt.Errorf("invalid release tag %q: %w", tag, err)
	}
	return v, nil
}

// IsStable reports whether tag is a valid release without a prerelease part.
func IsStable(tag string) bool {
	v, err := ParseRelease(tag)
	return err == nil && v.Prerelease() == ""
}

// IsNewestRelease reports whether tag is a stable release at least as new as
// every stable release in known. Tags in known that do not parse are ignored,
// repositories collect all kinds of tags over the years.
func IsNewestRelease(tag string, known []string) bool {
	cur, err := ParseRelease(tag)
	if err != nil || cur.Prerelease() != "" {
		return false
	}
	for _, k := range known {
		v, err := ParseRelease(k)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		if v.GreaterThan(cur) {
			return false
		}
	}
	return true
}

// MaxVersion returns the largest version string, skipping empty entries.
// Every other entry must parse.
func MaxVersion(vs []string) (string, error) {
	if len(vs) == 0 {
		return "", fmt.Errorf("no versions provided")
	}

	var best string
	var bestV *semver.Version
	for _, raw := range vs {
		if raw == "" {
			continue
		}
		v, err := ParseRelease(raw)
		if err != nil {
			return "", err
		}
		if bestV == nil || v.GreaterThan(bestV) {
			best, bestV = raw, v
		}
	}

	if bestV == nil {
		return "", fmt.Errorf("no valid versions found")
	}
	return best, nil
}
