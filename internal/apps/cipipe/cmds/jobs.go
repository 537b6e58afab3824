package cipipe

import (
	"context"
	"time"

	appconfig "github.com/0xa1bed0/cipipe/internal/apps/cipipe/config"
	"github.com/0xa1bed0/cipipe/internal/dockerclient"
	"github.com/0xa1bed0/cipipe/internal/jobs"
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/metrics"
	"github.com/0xa1bed0/cipipe/internal/runtime"
	"github.com/0xa1bed0/cipipe/internal/state"
	"github.com/spf13/cobra"
)

const (
	historyRetention   = 90 * 24 * time.Hour
	metricsPushTimeout = 10 * time.Second
)

type imageOptions struct {
	image string
}

type pipelineOptions struct {
	skipTests bool
	skipDocs  bool
}

func newBuildCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the project image and push it",
		Long: `Build the project image from its Dockerfile and push it.

The image tagged by the previous build is pulled first and used as a layer
cache. Builds that are neither releases nor on the release branch go to the
build repository and carry an expiry label. The pushed tag is remembered for
the next build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, func(deps *jobs.Deps) []jobs.Stage {
				return []jobs.Stage{{Name: "build", Jobs: []jobs.Job{jobs.NewBuildJob(deps)}}}
			})
		},
	}
}

func newTestCmd(opts *globalOptions) *cobra.Command {
	imgOpts := &imageOptions{}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the test suite inside the project image",
		Long: `Pull the project image, mount the test directory and run the test command.
Coverage is uploaded afterwards from a fresh container; a failed upload does
not fail the job.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, func(deps *jobs.Deps) []jobs.Stage {
				return []jobs.Stage{{Name: "test", Jobs: []jobs.Job{jobs.NewTestJob(deps, imgOpts.image)}}}
			})
		},
	}
	cmd.Flags().StringVar(&imgOpts.image, "image", "", "image to test (default: the image this build would produce)")

	return cmd
}

func newDocsCmd(opts *globalOptions) *cobra.Command {
	imgOpts := &imageOptions{}

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Build the documentation inside the project image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, func(deps *jobs.Deps) []jobs.Stage {
				return []jobs.Stage{{Name: "docs", Jobs: []jobs.Job{jobs.NewDocsJob(deps, imgOpts.image)}}}
			})
		},
	}
	cmd.Flags().StringVar(&imgOpts.image, "image", "", "image to build docs in (default: the image this build would produce)")

	return cmd
}

func newPipelineCmd(opts *globalOptions) *cobra.Command {
	pOpts := &pipelineOptions{}

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run build, then test and docs in parallel",
		Long: `Run the whole pipeline: the build stage, then the test stage with the test
and docs jobs in parallel. The first failing job cancels the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, func(deps *jobs.Deps) []jobs.Stage {
				return pipelineStages(deps, pOpts)
			})
		},
	}
	cmd.Flags().BoolVar(&pOpts.skipTests, "skip-tests", false, "do not run the test job")
	cmd.Flags().BoolVar(&pOpts.skipDocs, "skip-docs", false, "do not run the docs job")

	return cmd
}

func pipelineStages(deps *jobs.Deps, opts *pipelineOptions) []jobs.Stage {
	test := jobs.Stage{Name: "test"}
	if !opts.skipTests {
		test.Jobs = append(test.Jobs, jobs.NewTestJob(deps, ""))
	}
	if !opts.skipDocs {
		test.Jobs = append(test.Jobs, jobs.NewDocsJob(deps, ""))
	}

	return []jobs.Stage{
		{Name: "build", Jobs: []jobs.Job{jobs.NewBuildJob(deps)}},
		test,
	}
}

// runPipeline wires a session to the docker daemon, run history and metrics,
// and runs the stages returned by stagesFn.
func runPipeline(cmd *cobra.Command, opts *globalOptions, stagesFn func(deps *jobs.Deps) []jobs.Stage) error {
	s, err := loadSession(cmd, opts)
	if err != nil {
		return err
	}
	if err := s.detect(opts); err != nil {
		return err
	}
	ctx := s.rt.Ctx()

	logs.Infof("run %s: %s build of %s (branch %q, tag %q, commit %s)",
		s.rt.RunID(), s.plan.Kind, s.plan.Image, s.info.Branch, s.info.Tag, s.info.Commit)

	deps := &jobs.Deps{
		Config:  s.cfg,
		Info:    s.info,
		Plan:    s.plan,
		Environ: s.environ,
		Cache:   s.cache,
	}
	stages := stagesFn(deps)
	if err := s.cfg.ValidateJobs(jobNames(stages)...); err != nil {
		return err
	}

	docker, err := dockerclient.NewDockerClient(ctx)
	if err != nil {
		return err
	}
	defer docker.Close()
	deps.Docker = docker

	var recorder *metrics.PrometheusRecorder
	if s.cfg.Metrics.Pushgateway != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
	}

	runner := jobs.NewRunner(s.rt.RunID(), openHistory(s.rt), metricsRecorder(recorder))
	runErr := runner.Run(ctx, stages)

	if recorder != nil {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPushTimeout)
		defer cancel()
		grouping := map[string]string{"branch": s.info.Branch}
		if err := recorder.Push(pushCtx, s.cfg.Metrics.Pushgateway, s.cfg.Metrics.Job, grouping); err != nil {
			logs.Warnf("%v", err)
		}
	}

	return runErr
}

// openHistory returns the run history store, or nil when the state database
// can't be opened. History is best effort. The store stays open until the
// process shuts down so jobs canceled by a signal still record their outcome.
func openHistory(rt *runtime.Runtime) jobs.HistoryStore {
	ctx := rt.Ctx()
	store, err := state.OpenRunStore(ctx, appconfig.StateDBFile())
	if err != nil {
		logs.Warnf("run history disabled: %v", err)
		return nil
	}
	rt.OnShutdown(func(context.Context) {
		if err := store.Close(); err != nil {
			logs.Debugf("close run history: %v", err)
		}
	})
	if n, err := store.DeleteBefore(ctx, time.Now().Add(-historyRetention)); err != nil {
		logs.Debugf("prune run history: %v", err)
	} else if n > 0 {
		logs.Debugf("pruned %d old run records", n)
	}
	return store
}

func jobNames(stages []jobs.Stage) []string {
	var names []string
	for _, st := range stages {
		for _, j := range st.Jobs {
			names = append(names, j.Name())
		}
	}
	return names
}

func metricsRecorder(p *metrics.PrometheusRecorder) metrics.Recorder {
	if p == nil {
		return metrics.NoopRecorder{}
	}
	return p
}
