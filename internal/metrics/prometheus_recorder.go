package metrics

import (
	"context"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "cipipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg              *prom.Registry
	jobDuration      *prom.HistogramVec
	jobResults       *prom.CounterVec
	pipelineDuration *prom.GaugeVec
	lastSuccess      prom.Gauge
}

// NewPrometheusRecorder registers the pipeline metrics on reg, or on a fresh
// registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of pipeline jobs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600},
		}, []string{"job"}),
		jobResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_results_total",
			Help:      "Job results by outcome",
		}, []string{"job", "result"}),
		pipelineDuration: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of the last pipeline run",
		}, []string{"result"}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run",
		}),
	}
	reg.MustRegister(pr.jobDuration, pr.jobResults, pr.pipelineDuration, pr.lastSuccess)
	return pr
}

func (p *PrometheusRecorder) ObserveJobDuration(job string, d time.Duration) {
	if p == nil {
		return
	}
	p.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobResult(job string, result ResultLabel) {
	if p == nil {
		return
	}
	p.jobResults.WithLabelValues(job, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePipelineDuration(d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.pipelineDuration.WithLabelValues(string(result)).Set(d.Seconds())
	if result == ResultSuccess {
		p.lastSuccess.SetToCurrentTime()
	}
}

func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

// Push sends everything gathered so far to a Prometheus pushgateway, grouped
// by the given labels (for example branch).
func (p *PrometheusRecorder) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(p.reg)
	for k, v := range grouping {
		if v != "" {
			pusher = pusher.Grouping(k, v)
		}
	}
	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
