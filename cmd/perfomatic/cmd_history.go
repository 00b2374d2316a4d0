package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"perfomatic/internal/display"
	"perfomatic/internal/format"
	"perfomatic/internal/store"
)

var historyFlags struct {
	dbPath string
	url    string
	runID  string
	limit  int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, one run's sites, or one URL's score history",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "db", store.DefaultDBPath, "SQLite history DB")
	f.StringVar(&historyFlags.url, "url", "", "Show the history of one URL")
	f.StringVar(&historyFlags.runID, "run", "", "Show one run by ID or unique ID prefix")
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum rows (0 = all)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	s, err := store.Open(historyFlags.dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if historyFlags.runID != "" {
		return showRun(out, s, historyFlags.runID)
	}

	tb := format.NewTable(format.ASCII)
	if historyFlags.url != "" {
		entries, err := s.SiteHistory(historyFlags.url, historyFlags.limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(out, "No recorded runs for %s\n", historyFlags.url)
			return nil
		}
		tb.Caption(historyFlags.url)
		tb.Header("Run", "Started", "Overall", "Result", "Error")
		for _, e := range entries {
			overall := "n/a"
			if e.OverallScore != nil {
				overall = format.FmtScore(*e.OverallScore)
			}
			tb.Row(shortID(e.RunID), e.StartedAt.Local().Format("2006-01-02 15:04:05"), overall, format.BoolMark(e.Passed), format.Truncate(e.Error, 60))
		}
		_, err = fmt.Fprintln(out, tb.String())
		return err
	}

	runs, err := s.ListRuns(historyFlags.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No recorded runs in %s\n", historyFlags.dbPath)
		return nil
	}
	tb.Header("Run", "Started", "Took", "Engine", "Passed", "Failed", "Skipped", "Exit")
	for _, r := range runs {
		tb.Row(shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04:05"), format.FmtDuration(r.FinishedAt.Sub(r.StartedAt)),
			r.Engine, r.Passed, r.Failed, r.Skipped, r.ExitCode)
	}
	_, err = fmt.Fprintln(out, tb.String())
	return err
}

func showRun(out io.Writer, s store.Store, id string) error {
	run, err := findRun(s, id)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	tb := format.NewTable(format.ASCII)
	tb.Caption(fmt.Sprintf("Run %s (%s, %s)", run.ID, run.Engine, run.StartedAt.Local().Format("2006-01-02 15:04:05")))
	tb.Header("Site", "Overall", "Result", "Failure", "Error")
	for _, site := range run.Sites {
		overall := "n/a"
		if site.OverallScore != nil {
			overall = format.FmtScore(*site.OverallScore)
		}
		kind := ""
		if site.ErrorKind != "" {
			kind = display.FailureKind(site.ErrorKind)
		}
		tb.Row(site.URL, overall, format.BoolMark(site.Passed), kind, format.Truncate(site.Error, 60))
	}
	tb.Footer("", "", "", "exit", run.ExitCode)
	if _, err := fmt.Fprintln(out, tb.String()); err != nil {
		return err
	}
	for _, site := range run.Sites {
		for _, j := range site.Judgments {
			if j.Passed {
				continue
			}
			fmt.Fprintf(out, "FAIL %s %s: %s\n", site.URL, display.MetricWithKey(j.Scope), j.Message)
		}
	}
	return nil
}

// findRun resolves a full run ID or the short prefix shown by the runs table.
func findRun(s store.Store, id string) (*store.Run, error) {
	run, err := s.GetRun(id)
	if !errors.Is(err, store.ErrNotFound) {
		return run, err
	}
	runs, err := s.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match string
	for _, r := range runs {
		if !strings.HasPrefix(r.ID, id) {
			continue
		}
		if match != "" {
			return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
		}
		match = r.ID
	}
	if match == "" {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return s.GetRun(match)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
