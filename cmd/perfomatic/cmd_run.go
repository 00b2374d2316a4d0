package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"perfomatic/internal/config"
	"perfomatic/internal/logging"
	"perfomatic/internal/metrics"
	"perfomatic/internal/report"
	"perfomatic/internal/runner"
	"perfomatic/internal/store"
)

var runFlags struct {
	configPath     string
	urls           []string
	overall        float64
	verbose        bool
	showMetrics    bool
	concurrency    int
	engine         string
	timeoutPerSite time.Duration
	timeoutOverall time.Duration
	notApplicable  string
	jsonPath       string
	metricsFile    string
	historyPath    string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit the configured URLs against the budget (default command)",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	addRunFlags(runCmd)
}

// addRunFlags registers the run flags on cmd; root and run share them.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&runFlags.configPath, "config", "c", "", "Descriptor path (default: discover perfomatic.yaml/.yml/.json or package.json in the working directory)")
	f.StringSliceVar(&runFlags.urls, "url", nil, "URL to audit, replaces the descriptor's urls (repeatable)")
	f.Float64Var(&runFlags.overall, "overall", 0, "Overall score threshold 0-100 (0 disables the overall check)")
	f.BoolVarP(&runFlags.verbose, "verbose", "v", false, "Print scores for every site and passing checks")
	f.BoolVar(&runFlags.showMetrics, "show-available-metrics", false, "List the metric keys each audit produced")
	f.IntVar(&runFlags.concurrency, "concurrency", 1, "URLs audited at once")
	f.StringVar(&runFlags.engine, "engine", "", "Audit engine: chrome or lighthouse")
	f.DurationVar(&runFlags.timeoutPerSite, "timeout-per-site", 0, "Deadline for one URL (default 1m)")
	f.DurationVar(&runFlags.timeoutOverall, "timeout-overall", 0, "Deadline for the whole run (default 5m)")
	f.StringVar(&runFlags.notApplicable, "not-applicable", "", "How unscored audits count: pass, fail or skip")
	f.StringVar(&runFlags.jsonPath, "json", "", "Write the report as JSON to this path")
	f.StringVar(&runFlags.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	f.StringVar(&runFlags.historyPath, "history", "", "Record the run in this SQLite history DB")
}

func runRun(cmd *cobra.Command, _ []string) error {
	log := logging.New("cli")
	out := cmd.OutOrStdout()

	d, err := loadDescriptor(runFlags.configPath)
	if err != nil {
		return classify(err)
	}
	applyRunFlags(cmd, &d)

	cfg, err := config.Resolve(config.Defaults(), d)
	if err != nil {
		return classify(err)
	}
	inv, err := newInvoker(string(cfg.Engine))
	if err != nil {
		return usageError(err)
	}

	started := time.Now()
	r := runner.New(inv, out)
	results, err := r.Audit(cmd.Context(), cfg)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	finished := time.Now()

	rep := report.Aggregate(results)
	if err := rep.Print(out, cfg.Verbose); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	var sideErrs []error
	if runFlags.jsonPath != "" {
		sideErrs = append(sideErrs, rep.WriteJSON(runFlags.jsonPath))
	}
	if runFlags.metricsFile != "" {
		e := metrics.NewExporter()
		e.Observe(rep, results, finished, finished.Sub(started))
		sideErrs = append(sideErrs, e.WriteTextfile(runFlags.metricsFile))
	}
	if runFlags.historyPath != "" {
		sideErrs = append(sideErrs, recordHistory(runFlags.historyPath, store.NewRun(rep, results, string(cfg.Engine), started, finished)))
	}
	outErr := errors.Join(sideErrs...)

	sum := rep.Summarize()
	log.Info("run complete", "passed", sum.Passed, "failed", sum.Failed, "skipped", sum.Skipped)
	switch {
	case sum.ExitCode != 0:
		// The failure count wins; the output error is still reported.
		return &exitError{code: sum.ExitCode, err: outErr}
	case outErr != nil:
		return &exitError{code: 1, err: fmt.Errorf("writing run outputs: %w", outErr)}
	}
	return nil
}

func loadDescriptor(path string) (config.Descriptor, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.Descriptor{}, fmt.Errorf("working directory: %w", err)
	}
	found, d, err := config.Discover(cwd)
	if err == nil {
		logging.New("cli").Debug("descriptor found", "path", found)
	}
	return d, err
}

// applyRunFlags overrides descriptor values with flags set on the command line.
func applyRunFlags(cmd *cobra.Command, d *config.Descriptor) {
	f := cmd.Flags()
	if f.Changed("url") {
		d.URLs = runFlags.urls
	}
	if f.Changed("overall") {
		d.Overall = &runFlags.overall
	}
	if f.Changed("verbose") {
		d.Verbose = &runFlags.verbose
	}
	if f.Changed("show-available-metrics") {
		d.ShowAvailableMetrics = &runFlags.showMetrics
	}
	if f.Changed("concurrency") {
		d.Concurrency = &runFlags.concurrency
	}
	if f.Changed("engine") {
		d.Engine = &runFlags.engine
	}
	if f.Changed("timeout-per-site") {
		ms := runFlags.timeoutPerSite.Milliseconds()
		d.TimeoutPerSiteMs = &ms
	}
	if f.Changed("timeout-overall") {
		ms := runFlags.timeoutOverall.Milliseconds()
		d.TimeoutOverallMs = &ms
	}
	if f.Changed("not-applicable") {
		d.NotApplicable = &runFlags.notApplicable
	}
}

func recordHistory(path string, run *store.Run) error {
	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	id, err := s.RecordRun(run)
	if err != nil {
		return err
	}
	logging.New("cli").Info("run recorded", "id", id, "db", path)
	return nil
}
