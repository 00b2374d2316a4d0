// Package runner audits the configured URLs and evaluates each result
// against the budget.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"perfomatic/internal/audit"
	"perfomatic/internal/budget"
	"perfomatic/internal/config"
	"perfomatic/internal/logging"
	"perfomatic/internal/report"
)

// Runner drives one budget run. Out receives the console progress log; Log
// the diagnostics.
type Runner struct {
	Invoker audit.Invoker
	Out     io.Writer
	Log     *slog.Logger

	mu sync.Mutex
}

// New returns a Runner writing progress to out (stdout when nil).
func New(inv audit.Invoker, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{Invoker: inv, Out: out, Log: logging.New("runner")}
}

// Run audits every URL in cfg and aggregates the judgments into a report.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*report.Report, error) {
	results, err := r.Audit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return report.Aggregate(results), nil
}

// Audit invokes the engine for each URL and evaluates the results. The
// returned slice is in cfg.URLs order regardless of concurrency.
//
// Per-URL failures (unreachable site, engine error, timeout, unknown budget
// metric) are recorded in the SiteResult and do not stop the run. A fatal
// invoker error, or cancellation of ctx, aborts the run and is returned.
func (r *Runner) Audit(ctx context.Context, cfg *config.Config) ([]report.SiteResult, error) {
	if r.Invoker == nil {
		return nil, errors.New("runner: no invoker")
	}
	if r.Log == nil {
		r.Log = logging.New("runner")
	}
	if r.Out == nil {
		r.Out = io.Discard
	}

	r.printf("\nPreparing Perfomatic tests...\n")
	r.Log.Info("run started", "urls", len(cfg.URLs), "concurrency", cfg.Concurrency,
		"timeout_overall", cfg.TimeoutOverall, "timeout_per_site", cfg.TimeoutPerSite)

	overallCtx, cancel := context.WithTimeout(ctx, cfg.TimeoutOverall)
	defer cancel()

	results := make([]report.SiteResult, len(cfg.URLs))
	opts := audit.Options{Launcher: cfg.Launcher, Auditor: cfg.Auditor}

	g, gctx := errgroup.WithContext(overallCtx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for i, url := range cfg.URLs {
		g.Go(func() error {
			sr, err := r.auditOne(gctx, overallCtx, cfg, url, opts)
			results[i] = sr
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.Log.Error("run aborted", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.Log.Info("run finished", "urls", len(results))
	return results, nil
}

// auditOne handles one URL. The returned error is non-nil only when the whole
// run must stop.
func (r *Runner) auditOne(gctx, overallCtx context.Context, cfg *config.Config, url string, opts audit.Options) (report.SiteResult, error) {
	sr := report.SiteResult{URL: url}

	if err := gctx.Err(); err != nil {
		if errors.Is(overallCtx.Err(), context.DeadlineExceeded) {
			sr.Err = audit.NewTimeoutError(audit.TimeoutOverall, url, cfg.TimeoutOverall)
			r.Log.Warn("skipped after overall deadline", "url", url)
			return sr, nil
		}
		sr.Err = err
		return sr, nil
	}

	r.printf("   Testing site: %s ...\n", url)
	r.Log.Debug("auditing", "url", url)

	siteCtx, cancel := context.WithTimeout(gctx, cfg.TimeoutPerSite)
	defer cancel()

	res, err := r.Invoker.Invoke(siteCtx, url, opts)
	if err != nil {
		err = r.classify(siteCtx, overallCtx, cfg, url, err)
		if audit.IsFatal(err) {
			return sr, err
		}
		r.Log.Warn("audit failed", "url", url, "error", err)
		sr.Err = err
		r.done(cfg, url)
		return sr, nil
	}

	sr.Result = res
	r.dump(cfg, res)

	judgments, err := budget.Evaluate(cfg, res)
	if err != nil {
		r.Log.Warn("evaluation failed", "url", url, "error", err)
		sr.Err = err
	} else {
		sr.Judgments = judgments
	}
	r.done(cfg, url)
	return sr, nil
}

// classify maps context expiry onto a TimeoutError naming the deadline that
// fired; other errors pass through.
func (r *Runner) classify(siteCtx, overallCtx context.Context, cfg *config.Config, url string, err error) error {
	if audit.IsTimeout(err) {
		return err
	}
	expired := errors.Is(err, context.DeadlineExceeded) || errors.Is(siteCtx.Err(), context.DeadlineExceeded)
	if !expired {
		return err
	}
	if errors.Is(overallCtx.Err(), context.DeadlineExceeded) {
		return audit.NewTimeoutError(audit.TimeoutOverall, url, cfg.TimeoutOverall)
	}
	return audit.NewTimeoutError(audit.TimeoutSite, url, cfg.TimeoutPerSite)
}

func (r *Runner) done(cfg *config.Config, url string) {
	if cfg.Concurrency > 1 {
		r.printf("     done: %s\n", url)
		return
	}
	r.printf("     done.\n")
}

// dump prints the verbose score lines and the available-metrics listing.
func (r *Runner) dump(cfg *config.Config, res *audit.Result) {
	if !cfg.Verbose && !cfg.ShowAvailableMetrics {
		return
	}
	var b strings.Builder
	if cfg.Verbose {
		fmt.Fprintf(&b, "    Overall score: %s\n", score(res.OverallScore))
		for _, key := range cfg.Budget.Keys() {
			m, ok := res.Metrics[key]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "    %s score: %s", key, metricScore(m))
			if m.DisplayValue != "" {
				fmt.Fprintf(&b, " (%s)", m.DisplayValue)
			}
			b.WriteString("\n")
		}
	}
	if cfg.ShowAvailableMetrics {
		b.WriteString(AvailableMetrics(res))
	}
	r.printf("%s", b.String())
}

// AvailableMetrics lists every metric key of res with its scoring mode.
func AvailableMetrics(res *audit.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    Available metrics for %s:\n", res.RequestedURL)
	for _, key := range res.MetricKeys() {
		fmt.Fprintf(&b, "      %s: %s\n", key, res.Metrics[key].ScoringMode)
	}
	return b.String()
}

func (r *Runner) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, format, args...)
}

func metricScore(m audit.Metric) string {
	if m.Score == nil {
		return "n/a"
	}
	return score(*m.Score * 100)
}

func score(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
