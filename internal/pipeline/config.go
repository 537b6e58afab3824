// Package pipeline loads and validates the .cipipe.yml pipeline definition.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the project root when --config is not given.
const DefaultFileName = ".cipipe.yml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid pipeline config")

type Config struct {
	Image    ImageConfig    `yaml:"image"`
	Registry RegistryConfig `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache"`
	Test     TestConfig     `yaml:"test"`
	Docs     DocsConfig     `yaml:"docs"`
	Push     PushConfig     `yaml:"push"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// ProjectDir is the directory relative paths resolve against. Not read
	// from YAML.
	ProjectDir string `yaml:"-"`
}

type ImageConfig struct {
	// Repository receives release and release-branch builds.
	Repository string `yaml:"repository"`
	// BuildRepository receives every other build. Defaults to "<repository>-build".
	BuildRepository string            `yaml:"build_repository"`
	Dockerfile      string            `yaml:"dockerfile"`
	Context         string            `yaml:"context"`
	BuildArgs       map[string]string `yaml:"build_args"`

	ReleaseBranch      string `yaml:"release_branch"`
	ExpiryLabel        string `yaml:"expiry_label"`
	ExpireAfter        string `yaml:"expire_after"`
	TagLatestOnRelease bool   `yaml:"tag_latest_on_release"`
}

// RegistryConfig names the environment variables holding push credentials.
// The secrets themselves never live in the config file.
type RegistryConfig struct {
	Server      string `yaml:"server"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
}

type CacheConfig struct {
	Dir     string `yaml:"dir"`
	TagFile string `yaml:"tag_file"`
}

type Mount struct {
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	ReadOnly bool   `yaml:"read_only"`
}

type TestConfig struct {
	Mounts   []Mount        `yaml:"mounts"`
	WorkDir  string         `yaml:"workdir"`
	Command  []string       `yaml:"command"`
	Env      []string       `yaml:"env"`
	Coverage CoverageConfig `yaml:"coverage"`
}

type CoverageConfig struct {
	Command []string `yaml:"command"`
	Env     []string `yaml:"env"`
}

type DocsConfig struct {
	Command []string `yaml:"command"`
	WorkDir string   `yaml:"workdir"`
	Env     []string `yaml:"env"`
}

type PushConfig struct {
	// Enabled is a pointer so an explicit "false" survives defaulting.
	Enabled *bool `yaml:"enabled"`
	Retries *int  `yaml:"retries"`
}

type MetricsConfig struct {
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

// PushEnabled reports whether the build job may push at all.
func (c *Config) PushEnabled() bool {
	return c.Push.Enabled == nil || *c.Push.Enabled
}

// PushRetries is the number of extra attempts for a failed push or pull.
func (c *Config) PushRetries() int {
	if c.Push.Retries == nil {
		return 2
	}
	return *c.Push.Retries
}

// Resolve turns a project-relative path into an absolute one.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

// Load reads the config at path. When path is empty, DefaultFileName in
// projectDir is used if present; a missing default file yields a config built
// from defaults alone, which still has to pass validation.
func Load(path, projectDir string) (*Config, error) {
	cfg := &Config{}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(projectDir, DefaultFileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.ProjectDir = projectDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for in-memory YAML.
func Parse(data []byte, projectDir string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ProjectDir = projectDir
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	img := &c.Image
	if img.BuildRepository == "" && img.Repository != "" {
		img.BuildRepository = img.Repository + "-build"
	}
	if img.Dockerfile == "" {
		img.Dockerfile = "Dockerfile"
	}
	if img.Context == "" {
		img.Context = "."
	}
	if img.ReleaseBranch == "" {
		img.ReleaseBranch = "master"
	}
	if img.ExpiryLabel == "" {
		img.ExpiryLabel = "quay.expires-after"
	}
	if img.ExpireAfter == "" {
		img.ExpireAfter = "10w"
	}
	if img.ExpireAfter == "never" {
		img.ExpireAfter = ""
	}

	if c.Registry.Server == "" {
		c.Registry.Server = registryHost(img.Repository)
	}
	if c.Registry.UsernameEnv == "" {
		c.Registry.UsernameEnv = "DOCKER_USERNAME"
	}
	if c.Registry.PasswordEnv == "" {
		c.Registry.PasswordEnv = "DOCKER_PASSWORD"
	}

	if c.Cache.TagFile == "" {
		c.Cache.TagFile = "old_docker_tag"
	}

	if c.Metrics.Job == "" {
		c.Metrics.Job = "cipipe"
	}
}

// registryHost extracts the registry part of an image repository, following
// the docker reference convention: the first path component is a host only
// when it contains a dot or a colon, or is "localhost".
func registryHost(repository string) string {
	host, _, found := strings.Cut(repository, "/")
	if !found {
		return ""
	}
	if strings.ContainsAny(host, ".:") || host == "localhost" {
		return host
	}
	return ""
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Image.Repository == "" {
		add("image.repository is required")
	}
	if name := c.Image.Repository[strings.LastIndex(c.Image.Repository, "/")+1:]; strings.Contains(name, ":") {
		add("image.repository %q must not contain a tag", c.Image.Repository)
	}
	for i, m := range c.Test.Mounts {
		if m.Source == "" {
			add("test.mounts[%d].source is required", i)
		}
		if m.Target == "" {
			add("test.mounts[%d].target is required", i)
		} else if !strings.HasPrefix(m.Target, "/") {
			add("test.mounts[%d].target %q must be absolute", i, m.Target)
		}
	}
	if c.Push.Retries != nil && *c.Push.Retries < 0 {
		add("push.retries must not be negative")
	}

	return errors.Join(errs...)
}

// ValidateJobs checks what only the named jobs need. A repository without
// docs can still run the build and test jobs.
func (c *Config) ValidateJobs(jobs ...string) error {
	var errs []error
	for _, job := range jobs {
		var command []string
		switch job {
		case "test":
			command = c.Test.Command
		case "docs":
			command = c.Docs.Command
		default:
			continue
		}
		if len(command) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s.command is required to run the %s job", ErrInvalidConfig, job, job))
		}
	}
	return errors.Join(errs...)
}
