// Package store keeps the history of budget runs.
package store

import (
	"errors"
	"time"

	"perfomatic/internal/budget"
	"perfomatic/internal/report"
)

// DefaultDBPath is the default relative path for the history DB.
// Open creates the parent directory.
const DefaultDBPath = ".perfomatic/history.db"

// ErrNotFound is returned when a run ID is not in the store.
var ErrNotFound = errors.New("run not found")

// Run is one recorded budget run.
type Run struct {
	ID         string // uuid
	StartedAt  time.Time
	FinishedAt time.Time
	Engine     string
	Passed     int
	Failed     int
	Skipped    int
	ExitCode   int
	Sites      []Site
}

// Site is one URL's outcome within a run.
type Site struct {
	URL          string
	OverallScore *float64 // nil when the audit produced no result
	Passed       bool
	Error        string
	ErrorKind    string
	Judgments    []budget.Judgment
}

// Store persists runs. Implementations are SQLite (SqlStore) and in-memory
// (MemStore).
type Store interface {
	// RecordRun stores run, assigning an ID when empty, and returns the ID.
	RecordRun(run *Run) (string, error)
	GetRun(id string) (*Run, error)
	// ListRuns returns the most recent runs first, without sites.
	ListRuns(limit int) ([]*Run, error)
	// SiteHistory returns the recorded outcomes for url, most recent first.
	SiteHistory(url string, limit int) ([]SiteEntry, error)
	Close() error
}

// SiteEntry is a Site together with the run it belongs to.
type SiteEntry struct {
	RunID     string
	StartedAt time.Time
	Site
}

// NewRun builds a Run from a finished report and the raw runner results.
func NewRun(rep *report.Report, results []report.SiteResult, engine string, started, finished time.Time) *Run {
	sum := rep.Summarize()
	run := &Run{
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Engine:     engine,
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Skipped:    sum.Skipped,
		ExitCode:   sum.ExitCode,
		Sites:      make([]Site, len(rep.Sites)),
	}
	scores := make(map[string]float64, len(results))
	for _, sr := range results {
		if sr.Result != nil {
			scores[sr.URL] = sr.Result.OverallScore
		}
	}
	for i, s := range rep.Sites {
		site := Site{URL: s.URL, Passed: !s.Failed(), Judgments: s.Judgments}
		if v, ok := scores[s.URL]; ok {
			site.OverallScore = &v
		}
		if s.Err != nil {
			site.Error = s.Err.Error()
			site.ErrorKind = report.ErrorKind(s.Err)
		}
		run.Sites[i] = site
	}
	return run
}
