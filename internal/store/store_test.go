package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"perfomatic/internal/audit"
	"perfomatic/internal/budget"
	"perfomatic/internal/config"
	"perfomatic/internal/report"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{"sqlite": db, "memory": NewMemStore()}
}

func sampleRun(started time.Time, score float64) *Run {
	rep := report.New()
	rep.Add("http://a", []budget.Judgment{
		{Scope: "overall", Status: budget.StatusPass, Passed: true, Actual: score, Expected: config.AtLeast(90), Message: "overall"},
		{Scope: "server-response-time", Status: budget.StatusFail, Actual: false, Expected: config.Exactly(true), Help: "Reduce server response times."},
	})
	rep.AddError("http://b", audit.NewTimeoutError(audit.TimeoutSite, "http://b", time.Minute))
	results := []report.SiteResult{{URL: "http://a", Result: &audit.Result{OverallScore: score}}}
	return NewRun(rep, results, "chrome", started, started.Add(3*time.Second))
}

func TestNewRun(t *testing.T) {
	run := sampleRun(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), 93)
	if run.Passed != 1 || run.Failed != 2 || run.ExitCode != 2 {
		t.Errorf("counts = %d/%d exit %d", run.Passed, run.Failed, run.ExitCode)
	}
	if run.Sites[0].OverallScore == nil || *run.Sites[0].OverallScore != 93 {
		t.Errorf("site a score = %v", run.Sites[0].OverallScore)
	}
	if run.Sites[1].OverallScore != nil || run.Sites[1].ErrorKind != "timeout" || run.Sites[1].Passed {
		t.Errorf("site b = %+v", run.Sites[1])
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleRun(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), 93)
			id, err := s.RecordRun(want)
			if err != nil {
				t.Fatalf("RecordRun: %v", err)
			}
			if id == "" || id != want.ID {
				t.Fatalf("id = %q, run.ID = %q", id, want.ID)
			}

			got, err := s.GetRun(id)
			if err != nil {
				t.Fatalf("GetRun: %v", err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("run mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_GetRunNotFound(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetRun("missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ListAndHistoryNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for i, score := range []float64{91, 88, 95} {
				id, err := s.RecordRun(sampleRun(base.Add(time.Duration(i)*time.Hour), score))
				if err != nil {
					t.Fatalf("RecordRun: %v", err)
				}
				ids = append(ids, id)
			}

			runs, err := s.ListRuns(2)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			var got []string
			for _, r := range runs {
				got = append(got, r.ID)
				if len(r.Sites) != 0 {
					t.Errorf("ListRuns should omit sites")
				}
			}
			if diff := cmp.Diff([]string{ids[2], ids[1]}, got); diff != "" {
				t.Errorf("ListRuns order (-want +got):\n%s", diff)
			}

			hist, err := s.SiteHistory("http://a", 0)
			if err != nil {
				t.Fatalf("SiteHistory: %v", err)
			}
			var scores []float64
			for _, e := range hist {
				scores = append(scores, *e.OverallScore)
			}
			if diff := cmp.Diff([]float64{95, 88, 91}, scores); diff != "" {
				t.Errorf("history scores (-want +got):\n%s", diff)
			}
			if !hist[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
				t.Errorf("StartedAt = %v", hist[0].StartedAt)
			}
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := s.RecordRun(sampleRun(time.Now(), 90))
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetRun(id); err != nil {
		t.Errorf("GetRun after reopen: %v", err)
	}
}
