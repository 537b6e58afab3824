// Package jobs implements the pipeline jobs and the stage runner that
// executes them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0xa1bed0/cipipe/internal/cienv"
	"github.com/0xa1bed0/cipipe/internal/dockerclient"
	"github.com/0xa1bed0/cipipe/internal/guardrails"
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/pipeline"
	"github.com/0xa1bed0/cipipe/internal/registry"
	"github.com/0xa1bed0/cipipe/internal/tagcache"
	"github.com/0xa1bed0/cipipe/internal/tagging"
	"github.com/0xa1bed0/cipipe/internal/utils"
	"github.com/cenkalti/backoff/v4"
)

// ErrJobFailed wraps every job failure reported by the Runner.
var ErrJobFailed = errors.New("job failed")

type Job interface {
	Name() string
	// Image is the reference the job builds or runs.
	Image() string
	Run(ctx context.Context) error
}

// Deps is what every job works with.
type Deps struct {
	Docker  dockerclient.DockerClient
	Config  *pipeline.Config
	Info    cienv.Info
	Plan    tagging.Plan
	Environ map[string]string
	Cache   *tagcache.Cache

	// BackOff builds the retry policy for registry calls. Nil means
	// exponential backoff starting at one second.
	BackOff func() backoff.BackOff
}

// auth returns registry credentials. Pull requests never get them.
func (d *Deps) auth() (string, bool) {
	if d.Info.IsPullRequest() {
		return "", false
	}
	auth, ok, err := registry.ResolveAuth(d.Config.Registry, d.Environ)
	if err != nil {
		logs.Warnf("registry credentials unusable: %v", err)
		return "", false
	}
	return auth, ok
}

// retry runs op until it succeeds, up to push.retries extra attempts.
func (d *Deps) retry(ctx context.Context, what string, op func() error) error {
	retries := d.Config.PushRetries()

	var b backoff.BackOff
	if d.BackOff != nil {
		b = d.BackOff()
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = time.Second
		b = eb
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err != nil && attempt <= retries {
			logs.Warnf("%s failed (attempt %d of %d): %v", what, attempt, retries+1, err)
		}
		return err
	}, b)
}

// ensureImage makes image available to the local daemon. A failed pull falls
// back to a local copy, which covers builds whose push was skipped.
func (d *Deps) ensureImage(ctx context.Context, job, image string) error {
	auth, _ := d.auth()
	err := d.retry(ctx, "pull "+image, func() error {
		return d.Docker.PullImage(ctx, image, auth)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d.Docker.ImageExists(ctx, image) {
		logs.Warnf("[%s] could not pull %s, using the local image: %v", job, image, err)
		return nil
	}
	return fmt.Errorf("image %s is not available: %w", image, err)
}

// binds turns configured mounts into docker bind specs. Every source is
// checked against the mount guardrails first.
func binds(cfg *pipeline.Config, mounts []pipeline.Mount) ([]string, error) {
	out := make([]string, 0, len(mounts))
	for _, m := range mounts {
		source := cfg.Resolve(m.Source)
		if err := guardrails.CheckMount(source); err != nil {
			return nil, err
		}
		spec := source + ":" + m.Target
		if m.ReadOnly {
			spec += ":ro"
		}
		out = append(out, spec)
	}
	return out, nil
}

// passEnv builds the container environment. A bare NAME copies the host
// value when set; NAME=value entries are passed as written.
func passEnv(environ map[string]string, names ...[]string) []string {
	var all []string
	for _, n := range names {
		all = append(all, n...)
	}

	var out []string
	for _, name := range utils.UniqueTrimmedStrings(all) {
		if strings.Contains(name, "=") {
			out = append(out, name)
			continue
		}
		if v, ok := environ[name]; ok {
			out = append(out, name+"="+v)
			continue
		}
		logs.Debugf("environment variable %s is not set, not passing it", name)
	}
	return out
}
