// Package metrics records pipeline job outcomes. NoopRecorder is the default;
// PrometheusRecorder is used when a pushgateway is configured.
package metrics

import "time"

// ResultLabel enumerates job result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

type Recorder interface {
	ObserveJobDuration(job string, d time.Duration)
	IncJobResult(job string, result ResultLabel)
	ObservePipelineDuration(d time.Duration, result ResultLabel)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveJobDuration(string, time.Duration)           {}
func (NoopRecorder) IncJobResult(string, ResultLabel)                   {}
func (NoopRecorder) ObservePipelineDuration(time.Duration, ResultLabel) {}
