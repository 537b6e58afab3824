package jobs

import (
	"context"
	"fmt"

	"github.com/0xa1bed0/cipipe/internal/dockerclient"
	"github.com/0xa1bed0/cipipe/internal/logs"
)

// TestJob runs the test suite inside the built image, then the optional
// coverage upload.
type TestJob struct {
	*Deps
	// ImageOverride replaces the planned image when set.
	ImageOverride string
}

func NewTestJob(deps *Deps, image string) *TestJob {
	return &TestJob{Deps: deps, ImageOverride: image}
}

func (j *TestJob) Name() string { return "test" }

func (j *TestJob) Image() string {
	if j.ImageOverride != "" {
		return j.ImageOverride
	}
	return j.Plan.Image
}

func (j *TestJob) Run(ctx context.Context) error {
	image := j.Image()
	if err := j.ensureImage(ctx, j.Name(), image); err != nil {
		return err
	}

	t := j.Config.Test
	mounts, err := binds(j.Config, t.Mounts)
	if err != nil {
		return err
	}

	logs.Infof("[test] running %v in %s", t.Command, image)
	_, err = j.Docker.RunContainer(ctx, dockerclient.RunSpec{
		Image:   image,
		Cmd:     t.Command,
		Env:     passEnv(j.Environ, t.Env),
		Binds:   mounts,
		WorkDir: t.WorkDir,
		Name:    "cipipe-test",
		Stdout:  logs.StreamWriter("test"),
	})
	if err != nil {
		return fmt.Errorf("tests: %w", err)
	}

	if len(t.Coverage.Command) == 0 {
		return nil
	}

	logs.Infof("[test] uploading coverage with %v", t.Coverage.Command)
	// upload chatter goes to a tail box, only the last lines stay on screen
	coverageOut := logs.NewTailWriter("coverage")
	_, err = j.Docker.RunContainer(ctx, dockerclient.RunSpec{
		Image:   image,
		Cmd:     t.Coverage.Command,
		Env:     passEnv(j.Environ, t.Env, t.Coverage.Env),
		Binds:   mounts,
		WorkDir: t.WorkDir,
		Name:    "cipipe-coverage",
		Stdout:  coverageOut,
	})
	coverageOut.Close()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logs.Warnf("[test] coverage upload failed: %v", err)
	}
	return nil
}

// DocsJob builds the documentation inside the built image.
type DocsJob struct {
	*Deps
	ImageOverride string
}

func NewDocsJob(deps *Deps, image string) *DocsJob {
	return &DocsJob{Deps: deps, ImageOverride: image}
}

func (j *DocsJob) Name() string { return "docs" }

func (j *DocsJob) Image() string {
	if j.ImageOverride != "" {
		return j.ImageOverride
	}
	return j.Plan.Image
}

func (j *DocsJob) Run(ctx context.Context) error {
	image := j.Image()
	if err := j.ensureImage(ctx, j.Name(), image); err != nil {
		return err
	}

	d := j.Config.Docs
	logs.Infof("[docs] running %v in %s", d.Command, image)
	_, err := j.Docker.RunContainer(ctx, dockerclient.RunSpec{
		Image:   image,
		Cmd:     d.Command,
		Env:     passEnv(j.Environ, d.Env),
		WorkDir: d.WorkDir,
		Name:    "cipipe-docs",
		Stdout:  logs.StreamWriter("docs"),
	})
	if err != nil {
		return fmt.Errorf("docs build: %w", err)
	}
	return nil
}
