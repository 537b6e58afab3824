// Package tagging decides which image reference a build produces and which
// labels it carries.
package tagging

import (
	"strings"
	"unicode"

	"github.com/0xa1bed0/cipipe/internal/cienv"
	"github.com/0xa1bed0/cipipe/internal/pipeline"
	"github.com/0xa1bed0/cipipe/internal/versions"
)

// maxTagLen is the docker limit for the tag part of a reference.
const maxTagLen = 128

type Kind string

const (
	// KindRelease is a tagged release.
	KindRelease Kind = "release"
	// KindReleaseBranch is a push to the release branch.
	KindReleaseBranch Kind = "release-branch"
	// KindBuild is everything else: feature branches and pull requests.
	KindBuild Kind = "build"
)

// Plan is the outcome of tag planning.
type Plan struct {
	Kind Kind
	// Image is the primary reference built and pushed.
	Image string
	// Aliases are extra references tagged from Image and pushed with it.
	Aliases []string
	// Labels are appended to the Dockerfile before the build.
	Labels map[string]string
}

// References returns Image followed by its aliases.
func (p Plan) References() []string {
	return append([]string{p.Image}, p.Aliases...)
}

// Expiring reports whether the registry is asked to garbage collect the image.
func (p Plan) Expiring() bool {
	return len(p.Labels) > 0
}

// New computes the plan. knownReleases are the repository's tags and only
// matter for the "latest" alias of tagged releases.
func New(cfg *pipeline.Config, info cienv.Info, knownReleases []string) Plan {
	img := cfg.Image

	switch {
	case info.Tag != "":
		version := strings.TrimPrefix(info.Tag, "v")
		plan := Plan{
			Kind:  KindRelease,
			Image: img.Repository + ":" + Sanitize(version),
		}
		if img.TagLatestOnRelease && versions.IsNewestRelease(info.Tag, knownReleases) {
			plan.Aliases = append(plan.Aliases, img.Repository+":latest")
		}
		return plan

	case info.IsReleaseBranch(img.ReleaseBranch):
		return Plan{
			Kind:  KindReleaseBranch,
			Image: img.Repository + ":latest",
		}

	default:
		describe := strings.TrimPrefix(info.Describe, "v")
		tag := describe
		if info.Branch != "" {
			tag = describe + "-" + info.Branch
		}
		plan := Plan{
			Kind:  KindBuild,
			Image: img.BuildRepository + ":" + Sanitize(tag),
		}
		if img.ExpiryLabel != "" && img.ExpireAfter != "" {
			plan.Labels = map[string]string{img.ExpiryLabel: img.ExpireAfter}
		}
		return plan
	}
}

// Sanitize makes s a valid docker tag: runes outside [A-Za-z0-9_.-] become
// "-", leading "." and "-" are dropped, and the result is capped at 128
// characters. Case is kept, tags are case sensitive.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	out := strings.TrimLeft(b.String(), ".-")
	if len(out) > maxTagLen {
		out = out[:maxTagLen]
	}
	if out == "" {
		return "unknown"
	}
	return out
}
