// Package metrics exports a finished run as Prometheus metrics, written in the
// node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"perfomatic/internal/report"
)

const namespace = "perfomatic"

// Exporter holds the gauges for one run on its own registry.
type Exporter struct {
	reg *prometheus.Registry

	overall   *prometheus.GaugeVec
	score     *prometheus.GaugeVec
	passed    *prometheus.GaugeVec
	up        *prometheus.GaugeVec
	failures  prometheus.Gauge
	exitCode  prometheus.Gauge
	timestamp prometheus.Gauge
	duration  prometheus.Gauge
}

// NewExporter registers the run gauges on a fresh registry.
func NewExporter() *Exporter {
	e := &Exporter{
		reg: prometheus.NewRegistry(),
		overall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "site_overall_score",
			Help: "Overall performance score (0-100) per audited URL.",
		}, []string{"url"}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "metric_score",
			Help: "Budget metric score per URL: 0-100 for numeric audits, 0 or 1 for binary ones.",
		}, []string{"url", "metric"}),
		passed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "judgment_passed",
			Help: "1 when the budget judgment passed, 0 when it failed.",
		}, []string{"url", "scope"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "site_up",
			Help: "1 when the URL was audited, 0 when the audit failed.",
		}, []string{"url"}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_failures",
			Help: "Failed judgments and failed sites in the last run.",
		}),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_exit_code",
			Help: "Exit code of the last run.",
		}),
		timestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
	e.reg.MustRegister(e.overall, e.score, e.passed, e.up, e.failures, e.exitCode, e.timestamp, e.duration)
	return e
}

// Observe sets the gauges from a finished run.
func (e *Exporter) Observe(rep *report.Report, results []report.SiteResult, finished time.Time, took time.Duration) {
	for _, sr := range results {
		if sr.Result != nil {
			e.overall.WithLabelValues(sr.URL).Set(sr.Result.OverallScore)
		}
	}
	for _, s := range rep.Sites {
		if s.Err != nil {
			e.up.WithLabelValues(s.URL).Set(0)
			continue
		}
		e.up.WithLabelValues(s.URL).Set(1)
		for _, j := range s.Judgments {
			if j.Skipped {
				continue
			}
			e.passed.WithLabelValues(s.URL, j.Scope).Set(b2f(j.Passed))
			if j.Scope == "overall" {
				continue
			}
			switch v := j.Actual.(type) {
			case float64:
				e.score.WithLabelValues(s.URL, j.Scope).Set(v)
			case bool:
				e.score.WithLabelValues(s.URL, j.Scope).Set(b2f(v))
			}
		}
	}
	sum := rep.Summarize()
	e.failures.Set(float64(sum.Failed))
	e.exitCode.Set(float64(sum.ExitCode))
	e.timestamp.Set(float64(finished.Unix()))
	e.duration.Set(took.Seconds())
}

// Gatherer exposes the registry, e.g. for an HTTP handler.
func (e *Exporter) Gatherer() prometheus.Gatherer { return e.reg }

// WriteTextfile writes the gauges to path atomically.
func (e *Exporter) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, e.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
