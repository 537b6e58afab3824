// Package version carries the build version and the image labels cipipe
// stamps on what it builds.
package version

import "runtime/debug"

// Version is set at build time:
//
//	go build -ldflags "-X github.com/0xa1bed0/cipipe/internal/version.Version=v1.2.3"
var Version = ""

// Get returns the ldflags version, falling back to the module version
// recorded by `go install`.
func Get() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
