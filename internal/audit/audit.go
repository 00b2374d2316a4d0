// Package audit drives performance-auditing engines and normalizes what they
// report into a Result: an overall score and a map of scored metrics.
package audit

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ScoringMode mirrors how an engine scored a metric.
type ScoringMode string

const (
	ModeNumeric       ScoringMode = "numeric"
	ModeBinary        ScoringMode = "binary"
	ModeNotApplicable ScoringMode = "notApplicable"
	ModeInformative   ScoringMode = "informative"
)

// Metric is one audit outcome. Score is in [0,1]; nil means the engine did
// not score the audit for this page.
type Metric struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	HelpText     string      `json:"helpText,omitempty"`
	Score        *float64    `json:"score"`
	NumericValue *float64    `json:"numericValue,omitempty"`
	DisplayValue string      `json:"displayValue,omitempty"`
	ScoringMode  ScoringMode `json:"scoringMode"`
}

// Result is the raw outcome of auditing one URL. It is read-only once returned.
type Result struct {
	RequestedURL string            `json:"requestedUrl"`
	FinalURL     string            `json:"finalUrl,omitempty"`
	OverallScore float64           `json:"overallScore"`
	Metrics      map[string]Metric `json:"metrics"`
	Engine       string            `json:"engine"`
	FetchedAt    time.Time         `json:"fetchedAt"`
}

// MetricKeys returns the metric keys in sorted order.
func (r *Result) MetricKeys() []string {
	return slices.Sorted(maps.Keys(r.Metrics))
}

// Options are the opaque launcher and auditor overrides from the configuration.
type Options struct {
	Launcher map[string]any
	Auditor  map[string]any
}

// Invoker audits a single URL. Implementations return *InvokerError for
// engine-side failures and the context error when ctx expires.
type Invoker interface {
	Invoke(ctx context.Context, url string, opts Options) (*Result, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, url string, opts Options) (*Result, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, url string, opts Options) (*Result, error) {
	return f(ctx, url, opts)
}

// Score returns a pointer to v, for building Metrics.
func Score(v float64) *float64 { return &v }

// ForEngine returns the invoker for an engine name ("chrome" or "lighthouse").
func ForEngine(name string) (Invoker, error) {
	switch name {
	case "", EngineChrome:
		return NewChrome(), nil
	case EngineLighthouse:
		return &Lighthouse{}, nil
	}
	return nil, fmt.Errorf("unknown audit engine %q", name)
}
