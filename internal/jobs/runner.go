package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/metrics"
	"github.com/0xa1bed0/cipipe/internal/state"
	"golang.org/x/sync/errgroup"
)

// Stage is a group of jobs that run in parallel.
type Stage struct {
	Name string
	Jobs []Job
}

// HistoryStore receives one record per finished job.
type HistoryStore interface {
	Record(ctx context.Context, rec state.JobRecord) error
}

type Runner struct {
	RunID    string
	History  HistoryStore
	Recorder metrics.Recorder

	now func() time.Time
}

func NewRunner(runID string, history HistoryStore, recorder metrics.Recorder) *Runner {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Runner{
		RunID:    runID,
		History:  history,
		Recorder: recorder,
		now:      time.Now,
	}
}

// Run executes stages in order. Within a stage the first failing job cancels
// the others and no later stage starts.
func (r *Runner) Run(ctx context.Context, stages []Stage) error {
	started := r.clock()
	err := r.runStages(ctx, stages)
	r.Recorder.ObservePipelineDuration(r.clock().Sub(started), resultOf(ctx, err))
	return err
}

func (r *Runner) runStages(ctx context.Context, stages []Stage) error {
	for _, stage := range stages {
		if len(stage.Jobs) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		logs.Banner("stage " + stage.Name)
		g, gctx := errgroup.WithContext(ctx)
		for _, job := range stage.Jobs {
			g.Go(func() error {
				return r.runJob(gctx, job)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		logs.Infof("stage %s passed", stage.Name)
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, job Job) error {
	started := r.clock()
	err := job.Run(ctx)
	elapsed := r.clock().Sub(started)

	result := resultOf(ctx, err)
	r.Recorder.ObserveJobDuration(job.Name(), elapsed)
	r.Recorder.IncJobResult(job.Name(), result)

	rec := state.JobRecord{
		RunID:     r.RunID,
		Job:       job.Name(),
		Image:     job.Image(),
		Status:    state.JobStatus(result),
		StartedAt: started,
		Duration:  elapsed,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if r.History != nil {
		if herr := r.History.Record(context.WithoutCancel(ctx), rec); herr != nil {
			logs.Warnf("could not record %s in history: %v", job.Name(), herr)
		}
	}

	switch result {
	case metrics.ResultSuccess:
		logs.Infof("[%s] passed in %s", job.Name(), elapsed.Round(time.Second))
		return nil
	case metrics.ResultCanceled:
		logs.Warnf("[%s] canceled after %s", job.Name(), elapsed.Round(time.Second))
	default:
		logs.Errorf("[%s] failed after %s: %v", job.Name(), elapsed.Round(time.Second), err)
	}
	return fmt.Errorf("%w: %s: %w", ErrJobFailed, job.Name(), err)
}

func (r *Runner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// resultOf classifies err. Errors caused by cancellation of ctx count as
// canceled rather than failed.
func resultOf(ctx context.Context, err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, ctx.Err())):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
