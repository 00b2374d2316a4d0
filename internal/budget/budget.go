// Package budget judges one audit result against the configured budget.
package budget

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"perfomatic/internal/audit"
	"perfomatic/internal/config"
)

// OverallScope is the Judgment scope of the overall performance score.
const OverallScope = "overall"

// Status is the raw verdict before the not-applicable policy is applied.
type Status string

const (
	StatusPass          Status = "pass"
	StatusFail          Status = "fail"
	StatusNotApplicable Status = "not-applicable"
)

// Judgment is the verdict for one scope (overall or one metric) on one URL.
type Judgment struct {
	Scope  string `json:"scope"`
	Status Status `json:"status"`
	// Passed is the verdict after the not-applicable policy.
	Passed bool `json:"passed"`
	// Skipped is set for not-applicable audits under the skip policy; they
	// count neither as passed nor failed.
	Skipped bool `json:"skipped,omitempty"`
	// Actual is float64 (percent) for numeric scopes, bool for binary ones,
	// nil when not applicable.
	Actual   any              `json:"actual"`
	Expected config.Threshold `json:"expected"`
	Message  string           `json:"message"`
	// Help is the engine-provided guidance attached to failed judgments.
	Help string `json:"help,omitempty"`
}

// UnknownMetricError reports a budget key the audit result does not contain.
// It signals a configuration/engine mismatch, not a performance regression.
type UnknownMetricError struct {
	Key string
	URL string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q for %s: not present in the audit result (run with showAvailableMetrics to list keys)", e.Key, e.URL)
}

// IsUnknownMetric reports whether err is, or wraps, an UnknownMetricError.
func IsUnknownMetric(err error) bool {
	var ue *UnknownMetricError
	return errors.As(err, &ue)
}

// Evaluate judges res against cfg. Judgments come back in a fixed order: the
// overall score first (when an overall threshold is set), then each budget
// metric in configuration order. A budget key missing from res aborts the
// evaluation with an *UnknownMetricError.
func Evaluate(cfg *config.Config, res *audit.Result) ([]Judgment, error) {
	out := make([]Judgment, 0, cfg.Budget.Len()+1)

	if bar, ok := cfg.OverallThreshold(); ok {
		out = append(out, judgeOverall(bar, res.OverallScore))
	}

	for _, e := range cfg.Budget.Entries() {
		m, ok := res.Metrics[e.Key]
		if !ok {
			return nil, &UnknownMetricError{Key: e.Key, URL: res.RequestedURL}
		}
		out = append(out, judgeMetric(e, m, cfg.NotApplicable))
	}
	return out, nil
}

func judgeOverall(bar, score float64) Judgment {
	j := Judgment{
		Scope:    OverallScope,
		Actual:   score,
		Expected: config.AtLeast(bar),
		Passed:   score >= bar,
	}
	j.Status = statusOf(j.Passed)
	j.Message = fmt.Sprintf("overall score %s (expected >= %s)", pct(score), pct(bar))
	if !j.Passed {
		j.Help = fmt.Sprintf("Overall performance score %s is below the budget of %s.", pct(score), pct(bar))
	}
	return j
}

func judgeMetric(e config.Entry, m audit.Metric, policy config.NotApplicablePolicy) Judgment {
	j := Judgment{Scope: e.Key, Expected: e.Threshold}

	if m.Score == nil {
		j.Status = StatusNotApplicable
		switch policy {
		case config.NotApplicablePass:
			j.Passed = true
		case config.NotApplicableSkip:
			j.Passed = true
			j.Skipped = true
		}
		j.Message = fmt.Sprintf("%s not applicable to this page (policy %s)", e.Key, policy)
		if !j.Passed {
			j.Help = helpText(m)
			j.Message += describe(m)
		}
		return j
	}

	score := *m.Score
	switch e.Threshold.Kind {
	case config.Binary:
		want := 0.0
		if e.Threshold.Want {
			want = 1
		}
		j.Actual = score == 1
		j.Passed = score == want
		j.Message = fmt.Sprintf("%s score %t (expected %t)", e.Key, score == 1, e.Threshold.Want)
	default:
		actual := percent(score)
		j.Actual = actual
		j.Passed = actual >= e.Threshold.Min
		j.Message = fmt.Sprintf("%s score %s (expected >= %s)", e.Key, pct(actual), pct(e.Threshold.Min))
	}
	j.Status = statusOf(j.Passed)
	if m.DisplayValue != "" {
		j.Message += " [" + m.DisplayValue + "]"
	}
	if !j.Passed {
		j.Help = helpText(m)
		j.Message += describe(m)
	}
	return j
}

func statusOf(passed bool) Status {
	if passed {
		return StatusPass
	}
	return StatusFail
}

func helpText(m audit.Metric) string {
	if m.HelpText != "" {
		return m.HelpText
	}
	return m.Description
}

func describe(m audit.Metric) string {
	parts := make([]string, 0, 2)
	if m.Description != "" {
		parts = append(parts, m.Description)
	}
	if m.HelpText != "" && m.HelpText != m.Description {
		parts = append(parts, m.HelpText)
	}
	if len(parts) == 0 {
		return ""
	}
	return ": " + strings.Join(parts, ". ")
}

// percent scales a [0,1] score to [0,100], dropping float noise such as
// 0.29*100 = 28.999999999999996 so engine scores compare as written.
func percent(score float64) float64 {
	return math.Round(score*100*1e6) / 1e6
}

// pct formats a 0-100 score without trailing zeros.
func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
