// Package registry resolves push credentials from the CI environment.
package registry

import (
	"fmt"

	"github.com/0xa1bed0/cipipe/internal/pipeline"
	"github.com/docker/docker/api/types/registry"
)

// ResolveAuth reads the username and password from the variables named in cfg
// and encodes them for the X-Registry-Auth header. ok is false when either
// value is missing, which CI providers do for builds of forks.
func ResolveAuth(cfg pipeline.RegistryConfig, environ map[string]string) (auth string, ok bool, err error) {
	username := environ[cfg.UsernameEnv]
	password := environ[cfg.PasswordEnv]
	if username == "" || password == "" {
		return "", false, nil
	}

	auth, err = registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: cfg.Server,
	})
	if err != nil {
		return "", false, fmt.Errorf("encode registry credentials: %w", err)
	}
	return auth, true, nil
}

// Missing names the credential variables absent from environ.
func Missing(cfg pipeline.RegistryConfig, environ map[string]string) []string {
	var out []string
	for _, name := range []string{cfg.UsernameEnv, cfg.PasswordEnv} {
		if environ[name] == "" {
			out = append(out, name)
		}
	}
	return out
}
