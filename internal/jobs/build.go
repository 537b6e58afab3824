package jobs

import (
	"context"
	"fmt"

	"github.com/0xa1bed0/cipipe/internal/dockerclient"
	"github.com/0xa1bed0/cipipe/internal/dockerfile"
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/registry"
	"github.com/0xa1bed0/cipipe/internal/utils"
)

// BuildJob builds the planned image, reusing the previous build's layers, and
// publishes it.
type BuildJob struct {
	*Deps
}

func NewBuildJob(deps *Deps) *BuildJob {
	return &BuildJob{Deps: deps}
}

func (j *BuildJob) Name() string  { return "build" }
func (j *BuildJob) Image() string { return j.Plan.Image }

func (j *BuildJob) Run(ctx context.Context) error {
	cacheFrom := j.pullPrevious(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := j.build(ctx, cacheFrom); err != nil {
		return err
	}

	for _, alias := range j.Plan.Aliases {
		if err := j.Docker.TagImage(ctx, j.Plan.Image, alias); err != nil {
			return err
		}
	}

	pushed, err := j.push(ctx)
	if err != nil {
		return err
	}
	// the cache names the last pushed tag; a local-only image can't seed
	// the next build
	if !pushed {
		return nil
	}

	if err := j.Cache.Write(ctx, j.Plan.Image); err != nil {
		return fmt.Errorf("save built tag: %w", err)
	}
	return nil
}

// pullPrevious pulls the tag of the last build so its layers can seed the
// build cache. Failures only cost build time.
func (j *BuildJob) pullPrevious(ctx context.Context) []string {
	prev, ok, err := j.Cache.Read()
	if err != nil {
		logs.Warnf("[build] %v; building without a layer cache", err)
		return nil
	}
	if !ok {
		logs.Infof("[build] no previous image recorded in %s", j.Cache.Path())
		return nil
	}

	logs.Infof("[build] pulling previous image %s", prev)
	auth, _ := j.auth()
	if err := j.Docker.PullImage(ctx, prev, auth); err != nil {
		logs.Warnf("[build] could not pull %s, building without it: %v", prev, err)
		return nil
	}
	return []string{prev}
}

func (j *BuildJob) build(ctx context.Context, cacheFrom []string) error {
	img := j.Config.Image
	contextDir := j.Config.Resolve(img.Context)
	dockerfilePath := j.Config.Resolve(img.Dockerfile)

	rel, err := dockerfile.ContextPath(contextDir, dockerfilePath)
	if err != nil {
		return err
	}

	var patched []byte
	if j.Plan.Expiring() {
		df, err := dockerfile.Read(dockerfilePath)
		if err != nil {
			return err
		}
		patched = []byte(df.WithLabels(j.Plan.Labels).String())
		for _, k := range utils.SortedKeys(j.Plan.Labels) {
			logs.Infof("[build] labelling image %s=%s", k, j.Plan.Labels[k])
		}
	}

	buildCtx, err := dockerfile.Context(contextDir, rel, patched)
	if err != nil {
		return err
	}
	defer buildCtx.Close()

	logs.Infof("[build] building %s", j.Plan.Image)
	built, err := j.Docker.BuildImage(ctx, dockerclient.BuildRequest{
		Context:    buildCtx,
		Dockerfile: rel,
		Tag:        j.Plan.Image,
		CacheFrom:  cacheFrom,
		BuildArgs:  img.BuildArgs,
	})
	if err != nil {
		return err
	}
	logs.Infof("[build] built %s", built)
	return nil
}

// push reports whether every reference reached the registry.
func (j *BuildJob) push(ctx context.Context) (bool, error) {
	switch {
	case !j.Config.PushEnabled():
		logs.Warnf("[build] pushing is disabled, %s stays local", j.Plan.Image)
		return false, nil
	case j.Info.IsPullRequest():
		logs.Warnf("[build] pull request build, not pushing %s", j.Plan.Image)
		return false, nil
	}

	auth, ok := j.auth()
	if !ok {
		logs.Warnf("[build] registry credentials missing (%v), not pushing %s",
			registry.Missing(j.Config.Registry, j.Environ), j.Plan.Image)
		return false, nil
	}

	for _, ref := range j.Plan.References() {
		logs.Infof("[build] pushing %s", ref)
		err := j.retry(ctx, "push "+ref, func() error {
			return j.Docker.PushImage(ctx, ref, auth)
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
