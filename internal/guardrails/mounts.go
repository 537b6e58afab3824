// Package guardrails keeps host secrets out of pipeline containers.
package guardrails

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appconfig "github.com/0xa1bed0/cipipe/internal/apps/cipipe/config"
	"github.com/0xa1bed0/cipipe/internal/utils"
)

var ErrForbiddenMount = errors.New("forbidden mount source")

// A forbidden rule: exact path, prefix path, or a path no mount may contain.
type forbiddenRule struct {
	Path      string // normalized absolute path
	Exact     bool   // forbid ONLY this exact path
	Prefix    bool   // forbid this path AND any child paths
	Contained bool   // forbid this path AND every parent directory
}

// forbiddenRules is computed per call so HOME and CIPIPE_HOME changes are
// honored.
func forbiddenRules() []forbiddenRule {
	raw := []forbiddenRule{
		{Path: "/", Exact: true},

		// --- CONTAINER SOCKETS ---
		{Path: "/var/run/docker.sock", Contained: true},
		{Path: "/run/docker.sock", Contained: true},
		{Path: "/var/run/podman/podman.sock", Contained: true},
		{Path: "/run/podman/podman.sock", Contained: true},
		{Path: "/var/run/containerd/containerd.sock", Contained: true},
		{Path: "/run/containerd/containerd.sock", Contained: true},

		{Path: "/run", Prefix: true},
		{Path: "/var/run", Prefix: true},
		{Path: "/etc", Prefix: true},
		{Path: "/proc", Prefix: true},
		{Path: "/sys", Prefix: true},
		{Path: "/dev", Prefix: true},

		// --- CIPIPE INTERNALS ---
		{Path: appconfig.ConfigBasePath(), Prefix: true},
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		raw = append(raw, forbiddenRule{Path: home, Exact: true})
		for _, p := range []string{
			".ssh", ".gnupg", ".pki", ".aws", ".azure", ".docker", ".kube",
			".config/gh", ".config/gcloud", ".config/doctl", ".config/hcloud",
			".local/share/keyrings",
		} {
			raw = append(raw, forbiddenRule{Path: filepath.Join(home, p), Prefix: true})
		}
		raw = append(raw, forbiddenRule{Path: filepath.Join(home, ".git-credentials"), Exact: true})
		raw = append(raw, forbiddenRule{Path: filepath.Join(home, ".netrc"), Exact: true})
	}

	out := make([]forbiddenRule, 0, 2*len(raw))
	for _, r := range raw {
		r.Path = filepath.Clean(r.Path)
		// rule paths may be symlinks themselves (/var/run on most distros)
		if resolved := resolveRulePath(r.Path); resolved != r.Path {
			alias := r
			alias.Path = resolved
			out = append(out, alias)
		}
		out = append(out, r)
	}
	return out
}

// resolveRulePath follows symlinks in p. When p itself is missing (no docker
// on this host) its parent directory is resolved instead.
func resolveRulePath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(dir, filepath.Base(p))
	}
	return p
}

// CheckMount validates a bind mount source. The source has to exist and must
// not expose the docker socket, system directories or user credentials to
// the container.
func CheckMount(source string) error {
	return checkMount(source, forbiddenRules())
}

func checkMount(source string, rules []forbiddenRule) error {
	p, err := utils.ResolvePathStrict(source)
	if err != nil {
		return fmt.Errorf("mount source %s: %w", source, err)
	}

	for _, rule := range rules {
		switch {
		case rule.Exact && p == rule.Path:
			return fmt.Errorf("%w: %s", ErrForbiddenMount, p)
		case rule.Prefix && IsUnderPrefix(rule.Path, p):
			return fmt.Errorf("%w: %s is under %s", ErrForbiddenMount, p, rule.Path)
		case rule.Contained && IsUnderPrefix(p, rule.Path):
			return fmt.Errorf("%w: %s contains %s", ErrForbiddenMount, p, rule.Path)
		}
	}
	return nil
}

// IsUnderPrefix reports whether path is base or inside it. Both are expected
// to be clean absolute paths.
func IsUnderPrefix(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
