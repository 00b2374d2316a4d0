// Package report aggregates per-URL judgments into the run outcome.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"perfomatic/internal/audit"
	"perfomatic/internal/budget"
)

// MaxExitCode caps the failure count so it never collides with the shell's
// signal exit codes (126 and up).
const MaxExitCode = 125

// SiteResult is what the runner produces for one URL: either judgments or
// the error that prevented them.
type SiteResult struct {
	URL       string
	Result    *audit.Result
	Judgments []budget.Judgment
	Err       error
}

// Site is one URL's entry in the report.
type Site struct {
	URL       string
	Judgments []budget.Judgment
	// Err is an invoker, timeout or unknown-metric error. A site with Err
	// counts as a single failure.
	Err error
}

// Failed reports whether the site has an error or any failing judgment.
func (s Site) Failed() bool {
	if s.Err != nil {
		return true
	}
	for _, j := range s.Judgments {
		if !j.Passed {
			return true
		}
	}
	return false
}

// HelpEntry is guidance collected from a failing judgment.
type HelpEntry struct {
	Key string `json:"key"`
	URL string `json:"url"`
	Msg string `json:"msg"`
}

// Report is the ordered outcome of one run.
type Report struct {
	Sites []Site
	Help  []HelpEntry
}

// New returns an empty report.
func New() *Report {
	return &Report{}
}

// Add records the judgments for url and collects help for each failing one,
// in judgment order. Identical help is not deduplicated.
func (r *Report) Add(url string, judgments []budget.Judgment) {
	r.Sites = append(r.Sites, Site{URL: url, Judgments: judgments})
	for _, j := range judgments {
		if j.Passed {
			continue
		}
		msg := j.Help
		if msg == "" {
			msg = j.Message
		}
		r.Help = append(r.Help, HelpEntry{Key: j.Scope, URL: url, Msg: msg})
	}
}

// AddError records a site that produced no judgments.
func (r *Report) AddError(url string, err error) {
	if err == nil {
		err = errors.New("no audit result")
	}
	r.Sites = append(r.Sites, Site{URL: url, Err: err})
}

// Aggregate builds a report from runner results in their given order.
func Aggregate(results []SiteResult) *Report {
	r := New()
	for _, sr := range results {
		if sr.Err != nil {
			r.AddError(sr.URL, sr.Err)
			continue
		}
		r.Add(sr.URL, sr.Judgments)
	}
	return r
}

// Summary counts judgments across the report.
type Summary struct {
	Sites   int `json:"sites"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	// Errors is the number of sites that failed before evaluation; each is
	// also counted in Failed.
	Errors   int `json:"errors"`
	ExitCode int `json:"exitCode"`
}

// OK reports whether everything passed.
func (s Summary) OK() bool { return s.Failed == 0 }

// Summarize counts passed, failed and skipped judgments. The exit code is 0
// when nothing failed, else the failure count capped at MaxExitCode.
func (r *Report) Summarize() Summary {
	s := Summary{Sites: len(r.Sites)}
	for _, site := range r.Sites {
		if site.Err != nil {
			s.Errors++
			s.Failed++
			continue
		}
		for _, j := range site.Judgments {
			switch {
			case j.Skipped:
				s.Skipped++
			case j.Passed:
				s.Passed++
			default:
				s.Failed++
			}
		}
	}
	s.ExitCode = min(s.Failed, MaxExitCode)
	return s
}

// Failures returns the sites that failed, in report order.
func (r *Report) Failures() []Site {
	var out []Site
	for _, s := range r.Sites {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

type siteView struct {
	URL       string            `json:"url"`
	Passed    bool              `json:"passed"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"errorKind,omitempty"`
	Judgments []budget.Judgment `json:"judgments"`
}

type reportView struct {
	Summary Summary     `json:"summary"`
	Sites   []siteView  `json:"sites"`
	Help    []HelpEntry `json:"help"`
}

// MarshalJSON renders the report with its summary and errors as strings.
func (r *Report) MarshalJSON() ([]byte, error) {
	v := reportView{
		Summary: r.Summarize(),
		Sites:   make([]siteView, len(r.Sites)),
		Help:    r.Help,
	}
	if v.Help == nil {
		v.Help = []HelpEntry{}
	}
	for i, s := range r.Sites {
		sv := siteView{URL: s.URL, Passed: !s.Failed(), Judgments: s.Judgments}
		if sv.Judgments == nil {
			sv.Judgments = []budget.Judgment{}
		}
		if s.Err != nil {
			sv.Error = s.Err.Error()
			sv.ErrorKind = ErrorKind(s.Err)
		}
		v.Sites[i] = sv
	}
	return json.Marshal(v)
}

// ErrorKind classifies a site error for machine consumers.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case audit.IsTimeout(err):
		return "timeout"
	case budget.IsUnknownMetric(err):
		return "unknown-metric"
	default:
		return audit.KindOf(err).String()
	}
}

// WriteJSON writes the report to path, creating parent directories.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
