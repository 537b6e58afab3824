package jobs

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xa1bed0/cipipe/internal/cienv"
	"github.com/0xa1bed0/cipipe/internal/dockerclient"
	dockerMocks "github.com/0xa1bed0/cipipe/internal/dockerclient/mocks"
	"github.com/0xa1bed0/cipipe/internal/guardrails"
	"github.com/0xa1bed0/cipipe/internal/pipeline"
	"github.com/0xa1bed0/cipipe/internal/registry"
	"github.com/0xa1bed0/cipipe/internal/tagcache"
	"github.com/0xa1bed0/cipipe/internal/tagging"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testConfigYAML = `
image:
  repository: quay.io/org/app
test:
  mounts:
    - source: test
      target: /opt/app/test
      read_only: true
  workdir: /opt/app
  command: [pytest, -rsxX, test/unit]
  env: [CI, NOT_SET]
  coverage:
    command: [coveralls]
    env: [COVERALLS_REPO_TOKEN]
docs:
  command: [make, -C, docs, html]
`

var credentials = map[string]string{
	"DOCKER_USERNAME": "robot",
	"DOCKER_PASSWORD": "secret",
}

type fixture struct {
	deps   *Deps
	docker *dockerMocks.MockDockerClient
	dir    string
}

func newFixture(t *testing.T, info cienv.Info, environ map[string]string) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.11\nCOPY . /opt/app\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"), []byte("# setup\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "test"), 0o755))

	cfg, err := pipeline.Parse([]byte(testConfigYAML), dir)
	require.NoError(t, err)

	cache, err := tagcache.Open(filepath.Join(dir, ".cache"), cfg.Cache.TagFile)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	docker := dockerMocks.NewMockDockerClient(ctrl)

	if environ == nil {
		environ = map[string]string{}
	}

	return &fixture{
		dir:    dir,
		docker: docker,
		deps: &Deps{
			Docker:  docker,
			Config:  cfg,
			Info:    info,
			Plan:    tagging.New(cfg, info, nil),
			Environ: environ,
			Cache:   cache,
			BackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		},
	}
}

func expectedAuth(t *testing.T, f *fixture) string {
	t.Helper()
	auth, ok, err := registry.ResolveAuth(f.deps.Config.Registry, f.deps.Environ)
	require.NoError(t, err)
	require.True(t, ok)
	return auth
}

func tarFiles(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	out := map[string]string{}
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		if h.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[h.Name] = string(data)
	}
}

func TestBuildJobReleaseBranch(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "master", PullRequest: "false", Describe: "v1.0.0-4-gabcdef1"}, credentials)
	ctx := context.Background()
	require.NoError(t, f.deps.Cache.Write(ctx, "quay.io/org/app:latest"))

	auth := expectedAuth(t, f)
	job := NewBuildJob(f.deps)
	require.Equal(t, "quay.io/org/app:latest", job.Image())

	gomock.InOrder(
		f.docker.EXPECT().PullImage(gomock.Any(), "quay.io/org/app:latest", auth).Return(nil),
		f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req dockerclient.BuildRequest) (string, error) {
				require.Equal(t, "quay.io/org/app:latest", req.Tag)
				require.Equal(t, []string{"quay.io/org/app:latest"}, req.CacheFrom)
				require.Equal(t, "Dockerfile", req.Dockerfile)
				files := tarFiles(t, req.Context)
				require.Equal(t, "FROM python:3.11\nCOPY . /opt/app\n", files["Dockerfile"], "release builds are not patched")
				require.Contains(t, files, "setup.py")
				return req.Tag, nil
			}),
		f.docker.EXPECT().PushImage(gomock.Any(), "quay.io/org/app:latest", auth).Return(nil),
	)

	require.NoError(t, job.Run(ctx))

	tag, ok, err := f.deps.Cache.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "quay.io/org/app:latest", tag)
}

func TestBuildJobFeatureBranchPatchesDockerfile(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "feature/x", PullRequest: "false", Describe: "abcdef1"}, nil)
	want := "quay.io/org/app-build:abcdef1-feature-x"

	f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req dockerclient.BuildRequest) (string, error) {
			require.Equal(t, want, req.Tag)
			require.Empty(t, req.CacheFrom)
			files := tarFiles(t, req.Context)
			require.Equal(t, "FROM python:3.11\nCOPY . /opt/app\nLABEL quay.expires-after=10w\n", files["Dockerfile"])
			return req.Tag, nil
		})

	require.NoError(t, NewBuildJob(f.deps).Run(context.Background()))

	onDisk, err := os.ReadFile(filepath.Join(f.dir, "Dockerfile"))
	require.NoError(t, err)
	require.NotContains(t, string(onDisk), "LABEL", "the checked-out Dockerfile must stay untouched")

	_, ok, err := f.deps.Cache.Read()
	require.NoError(t, err)
	require.False(t, ok, "an image that was never pushed must not be cached")
}

func TestBuildJobIgnoresFailedCachePull(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abcdef1"}, nil)
	ctx := context.Background()
	require.NoError(t, f.deps.Cache.Write(ctx, "quay.io/org/app-build:gone"))

	f.docker.EXPECT().PullImage(gomock.Any(), "quay.io/org/app-build:gone", "").Return(errors.New("manifest unknown"))
	f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req dockerclient.BuildRequest) (string, error) {
			require.Empty(t, req.CacheFrom)
			return req.Tag, nil
		})

	require.NoError(t, NewBuildJob(f.deps).Run(ctx))
}

func TestBuildJobPullRequestNeverPushes(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "master", PullRequest: "7", Describe: "abcdef1"}, credentials)

	f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).Return("quay.io/org/app-build:abcdef1-master", nil)
	f.docker.EXPECT().PushImage(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, NewBuildJob(f.deps).Run(context.Background()))
}

func TestBuildJobSkippedPushKeepsPreviousTag(t *testing.T) {
	tests := []struct {
		name    string
		info    cienv.Info
		environ map[string]string
		disable bool
	}{
		{name: "pull request", info: cienv.Info{Branch: "feature", PullRequest: "42", Describe: "v1.0.0-4-gabcdef1"}, environ: credentials},
		{name: "push disabled", info: cienv.Info{Branch: "feature", PullRequest: "false", Describe: "v1.0.0-4-gabcdef1"}, environ: credentials, disable: true},
		{name: "no credentials", info: cienv.Info{Branch: "feature", PullRequest: "false", Describe: "v1.0.0-4-gabcdef1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.info, tt.environ)
			if tt.disable {
				off := false
				f.deps.Config.Push.Enabled = &off
			}
			ctx := context.Background()
			require.NoError(t, f.deps.Cache.Write(ctx, "quay.io/org/app:latest"))

			f.docker.EXPECT().PullImage(gomock.Any(), "quay.io/org/app:latest", gomock.Any()).Return(nil)
			f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, req dockerclient.BuildRequest) (string, error) {
					require.Equal(t, "quay.io/org/app-build:1.0.0-4-gabcdef1-feature", req.Tag)
					return req.Tag, nil
				})
			f.docker.EXPECT().PushImage(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			require.NoError(t, NewBuildJob(f.deps).Run(ctx))

			tag, ok, err := f.deps.Cache.Read()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "quay.io/org/app:latest", tag)
		})
	}
}

func TestBuildJobRetriesPushAndTagsAliases(t *testing.T) {
	f := newFixture(t, cienv.Info{Tag: "v2.0.0", Branch: "v2.0.0", PullRequest: "false", Describe: "v2.0.0"}, credentials)
	f.deps.Config.Image.TagLatestOnRelease = true
	f.deps.Plan = tagging.New(f.deps.Config, f.deps.Info, []string{"v1.9.0", "v2.0.0"})
	auth := expectedAuth(t, f)

	f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).Return("quay.io/org/app:2.0.0", nil)
	f.docker.EXPECT().TagImage(gomock.Any(), "quay.io/org/app:2.0.0", "quay.io/org/app:latest").Return(nil)
	gomock.InOrder(
		f.docker.EXPECT().PushImage(gomock.Any(), "quay.io/org/app:2.0.0", auth).Return(errors.New("502 bad gateway")),
		f.docker.EXPECT().PushImage(gomock.Any(), "quay.io/org/app:2.0.0", auth).Return(nil),
		f.docker.EXPECT().PushImage(gomock.Any(), "quay.io/org/app:latest", auth).Return(nil),
	)

	require.NoError(t, NewBuildJob(f.deps).Run(context.Background()))
}

func TestBuildJobFailedPushKeepsPreviousTag(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "master", PullRequest: "false", Describe: "abcdef1"}, credentials)
	ctx := context.Background()
	require.NoError(t, f.deps.Cache.Write(ctx, "quay.io/org/app:previous"))

	f.docker.EXPECT().PullImage(gomock.Any(), "quay.io/org/app:previous", gomock.Any()).Return(nil)
	f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).Return("quay.io/org/app:latest", nil)
	f.docker.EXPECT().PushImage(gomock.Any(), "quay.io/org/app:latest", gomock.Any()).
		Return(errors.New("unauthorized")).Times(3)

	require.Error(t, NewBuildJob(f.deps).Run(ctx))

	tag, _, err := f.deps.Cache.Read()
	require.NoError(t, err)
	require.Equal(t, "quay.io/org/app:previous", tag)
}

func TestBuildJobBuildFailure(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abcdef1"}, nil)

	f.docker.EXPECT().BuildImage(gomock.Any(), gomock.Any()).Return("", errors.New("step 2/2 failed"))

	err := NewBuildJob(f.deps).Run(context.Background())
	require.ErrorContains(t, err, "step 2/2 failed")

	_, ok, _ := f.deps.Cache.Read()
	require.False(t, ok, "a failed build must not be cached")
}

func TestTestJobRunsTestsAndCoverage(t *testing.T) {
	env := map[string]string{"CI": "true", "COVERALLS_REPO_TOKEN": "tok"}
	for k, v := range credentials {
		env[k] = v
	}
	f := newFixture(t, cienv.Info{Branch: "master", PullRequest: "false"}, env)
	auth := expectedAuth(t, f)

	var specs []dockerclient.RunSpec
	f.docker.EXPECT().PullImage(gomock.Any(), "quay.io/org/app:latest", auth).Return(nil)
	f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, spec dockerclient.RunSpec) (int64, error) {
			specs = append(specs, spec)
			return 0, nil
		}).Times(2)

	require.NoError(t, NewTestJob(f.deps, "").Run(context.Background()))
	require.Len(t, specs, 2)

	tests := specs[0]
	require.Equal(t, "quay.io/org/app:latest", tests.Image)
	require.Equal(t, []string{"pytest", "-rsxX", "test/unit"}, tests.Cmd)
	require.Equal(t, []string{filepath.Join(f.dir, "test") + ":/opt/app/test:ro"}, tests.Binds)
	require.Equal(t, "/opt/app", tests.WorkDir)
	require.Equal(t, []string{"CI=true"}, tests.Env)

	coverage := specs[1]
	require.Equal(t, []string{"coveralls"}, coverage.Cmd)
	require.Equal(t, tests.Binds, coverage.Binds)
	require.Equal(t, []string{"CI=true", "COVERALLS_REPO_TOKEN=tok"}, coverage.Env)
}

func TestTestJobCoverageFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abc1234"}, nil)

	f.docker.EXPECT().PullImage(gomock.Any(), gomock.Any(), "").Return(nil)
	gomock.InOrder(
		f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).Return(int64(0), nil),
		f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).Return(int64(1), &dockerclient.ExitError{Code: 1}),
	)

	require.NoError(t, NewTestJob(f.deps, "").Run(context.Background()))
}

func TestTestJobFailsOnNonZeroExit(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abc1234"}, nil)

	f.docker.EXPECT().PullImage(gomock.Any(), "registry.local/app:pinned", "").Return(nil)
	f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).Return(int64(2), &dockerclient.ExitError{Code: 2})

	err := NewTestJob(f.deps, "registry.local/app:pinned").Run(context.Background())
	require.ErrorIs(t, err, dockerclient.ErrNonZeroExit)
}

func TestTestJobFallsBackToLocalImage(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abc1234"}, nil)
	image := f.deps.Plan.Image

	f.docker.EXPECT().PullImage(gomock.Any(), image, "").Return(errors.New("not found")).Times(3)
	f.docker.EXPECT().ImageExists(gomock.Any(), image).Return(true)
	f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).Return(int64(0), nil).Times(2)

	require.NoError(t, NewTestJob(f.deps, "").Run(context.Background()))
}

func TestTestJobRejectsForbiddenMount(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abc1234"}, nil)
	f.deps.Config.Test.Mounts = []pipeline.Mount{{Source: "/etc", Target: "/host-etc", ReadOnly: true}}

	f.docker.EXPECT().PullImage(gomock.Any(), gomock.Any(), "").Return(nil)
	f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).Times(0)

	err := NewTestJob(f.deps, "").Run(context.Background())
	require.ErrorIs(t, err, guardrails.ErrForbiddenMount)
}

func TestDocsJobMissingImage(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abc1234"}, nil)
	zero := 0
	f.deps.Config.Push.Retries = &zero

	f.docker.EXPECT().PullImage(gomock.Any(), gomock.Any(), "").Return(errors.New("not found"))
	f.docker.EXPECT().ImageExists(gomock.Any(), gomock.Any()).Return(false)
	f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).Times(0)

	err := NewDocsJob(f.deps, "").Run(context.Background())
	require.ErrorContains(t, err, "is not available")
}

func TestDocsJobRunsDocsCommand(t *testing.T) {
	f := newFixture(t, cienv.Info{Branch: "dev", Describe: "abc1234"}, nil)

	f.docker.EXPECT().PullImage(gomock.Any(), gomock.Any(), "").Return(nil)
	f.docker.EXPECT().RunContainer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, spec dockerclient.RunSpec) (int64, error) {
			require.Equal(t, []string{"make", "-C", "docs", "html"}, spec.Cmd)
			require.Empty(t, spec.Binds)
			return 0, nil
		})

	require.NoError(t, NewDocsJob(f.deps, "").Run(context.Background()))
}

func TestPassEnv(t *testing.T) {
	got := passEnv(map[string]string{"A": "1", "EMPTY": ""}, []string{"A", " A ", "MISSING", "EMPTY"}, []string{"LITERAL=x"})
	require.Equal(t, []string{"A=1", "EMPTY=", "LITERAL=x"}, got)
}
