// Package mcp exposes budget evaluation and audit runs as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"perfomatic/internal/audit"
	"perfomatic/internal/budget"
	"perfomatic/internal/config"
	"perfomatic/internal/logging"
	"perfomatic/internal/report"
	"perfomatic/internal/runner"
	"perfomatic/internal/store"
)

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server
	// ProjectRoot is where run_budget looks for a descriptor when none is given.
	ProjectRoot string
	// NewInvoker returns the audit engine for a configured engine name.
	NewInvoker func(engine string) (audit.Invoker, error)
	// History, when set, records every run_budget run.
	History store.Store
}

// NewServer creates an MCP server with the budget tools registered. It
// captures the working directory as the project root.
func NewServer(version string) *Server {
	cwd, _ := os.Getwd()
	s := &Server{
		ProjectRoot: cwd,
		NewInvoker:  audit.ForEngine,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "perfomatic", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "evaluate_budget",
		Description: "Judge an existing audit result (perfomatic result JSON or a Lighthouse report) against a budget descriptor. Does not launch a browser.",
	}, s.handleEvaluateBudget)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_budget",
		Description: "Audit the descriptor's URLs and judge them against its budget. Returns the summary, judgments and help for failed metrics.",
	}, s.handleRunBudget)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_metrics",
		Description: "Audit one URL and list the metric keys usable in a budget, with scoring mode and current score.",
	}, s.handleListMetrics)
}

// --- Tool input/output types ---

type evaluateBudgetInput struct {
	Descriptor string `json:"descriptor" jsonschema:"budget descriptor as JSON or YAML text (urls, overall, budget, notApplicable)"`
	ResultJSON string `json:"result_json" jsonschema:"audit result JSON for one URL"`
	Format     string `json:"format,omitempty" jsonschema:"result format: perfomatic (default) or lighthouse"`
	URL        string `json:"url,omitempty" jsonschema:"requested URL, used when the result does not carry one"`
}

type runBudgetInput struct {
	Descriptor  string   `json:"descriptor,omitempty" jsonschema:"budget descriptor as JSON or YAML text; discovered from the project root when empty"`
	URLs        []string `json:"urls,omitempty" jsonschema:"override the descriptor's urls"`
	Engine      string   `json:"engine,omitempty" jsonschema:"audit engine: chrome or lighthouse"`
	Concurrency int      `json:"concurrency,omitempty" jsonschema:"number of URLs audited at once (default 1)"`
}

type listMetricsInput struct {
	URL    string `json:"url" jsonschema:"URL to audit"`
	Engine string `json:"engine,omitempty" jsonschema:"audit engine: chrome or lighthouse"`
}

type judgmentView struct {
	Scope    string `json:"scope"`
	Status   string `json:"status"`
	Passed   bool   `json:"passed"`
	Skipped  bool   `json:"skipped,omitempty"`
	Actual   string `json:"actual"`
	Expected string `json:"expected"`
	Message  string `json:"message"`
}

type siteView struct {
	URL       string         `json:"url"`
	Passed    bool           `json:"passed"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Judgments []judgmentView `json:"judgments"`
}

type helpView struct {
	Key string `json:"key"`
	URL string `json:"url"`
	Msg string `json:"msg"`
}

type budgetOutput struct {
	Passed   bool       `json:"passed"`
	ExitCode int        `json:"exit_code"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Sites    []siteView `json:"sites"`
	Help     []helpView `json:"help"`
	Markdown string     `json:"markdown"`
	RunID    string     `json:"run_id,omitempty"`
}

type metricView struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	ScoringMode  string   `json:"scoring_mode"`
	Score        *float64 `json:"score,omitempty"`
	DisplayValue string   `json:"display_value,omitempty"`
}

type listMetricsOutput struct {
	URL          string       `json:"url"`
	OverallScore float64      `json:"overall_score"`
	Metrics      []metricView `json:"metrics"`
}

// --- Handlers ---

func (s *Server) handleEvaluateBudget(_ context.Context, _ *sdkmcp.CallToolRequest, input evaluateBudgetInput) (*sdkmcp.CallToolResult, budgetOutput, error) {
	d, err := config.Parse([]byte(input.Descriptor), "")
	if err != nil {
		return nil, budgetOutput{}, err
	}

	var res *audit.Result
	switch input.Format {
	case "", "perfomatic":
		res = &audit.Result{}
		if err := json.Unmarshal([]byte(input.ResultJSON), res); err != nil {
			return nil, budgetOutput{}, fmt.Errorf("parse result_json: %w", err)
		}
	case "lighthouse":
		res, err = audit.ParseLighthouse(input.URL, []byte(input.ResultJSON))
		if err != nil {
			return nil, budgetOutput{}, err
		}
	default:
		return nil, budgetOutput{}, fmt.Errorf("unknown format %q (want perfomatic or lighthouse)", input.Format)
	}
	if res.RequestedURL == "" {
		res.RequestedURL = input.URL
	}
	if len(d.URLs) == 0 && res.RequestedURL != "" {
		d.URLs = []string{res.RequestedURL}
	}

	cfg, err := config.Resolve(config.Defaults(), d)
	if err != nil {
		return nil, budgetOutput{}, err
	}

	rep := report.New()
	judgments, err := budget.Evaluate(cfg, res)
	if err != nil {
		rep.AddError(res.RequestedURL, err)
	} else {
		rep.Add(res.RequestedURL, judgments)
	}
	return nil, toOutput(rep), nil
}

func (s *Server) handleRunBudget(ctx context.Context, _ *sdkmcp.CallToolRequest, input runBudgetInput) (*sdkmcp.CallToolResult, budgetOutput, error) {
	log := logging.New("mcp")

	var (
		d   config.Descriptor
		err error
	)
	if input.Descriptor != "" {
		d, err = config.Parse([]byte(input.Descriptor), "")
	} else {
		_, d, err = config.Discover(s.ProjectRoot)
	}
	if err != nil {
		return nil, budgetOutput{}, err
	}
	if len(input.URLs) > 0 {
		d.URLs = input.URLs
	}
	if input.Engine != "" {
		d.Engine = &input.Engine
	}
	if input.Concurrency > 0 {
		d.Concurrency = &input.Concurrency
	}

	cfg, err := config.Resolve(config.Defaults(), d)
	if err != nil {
		return nil, budgetOutput{}, err
	}
	inv, err := s.NewInvoker(string(cfg.Engine))
	if err != nil {
		return nil, budgetOutput{}, err
	}

	started := time.Now()
	r := runner.New(inv, io.Discard)
	results, err := r.Audit(ctx, cfg)
	if err != nil {
		return nil, budgetOutput{}, fmt.Errorf("run_budget: %w", err)
	}
	rep := report.Aggregate(results)
	out := toOutput(rep)

	if s.History != nil {
		run := store.NewRun(rep, results, string(cfg.Engine), started, time.Now())
		id, err := s.History.RecordRun(run)
		if err != nil {
			log.Warn("record run failed", "error", err)
		} else {
			out.RunID = id
		}
	}
	log.Info("run_budget finished", "urls", len(cfg.URLs), "exit_code", out.ExitCode)
	return nil, out, nil
}

func (s *Server) handleListMetrics(ctx context.Context, _ *sdkmcp.CallToolRequest, input listMetricsInput) (*sdkmcp.CallToolResult, listMetricsOutput, error) {
	if input.URL == "" {
		return nil, listMetricsOutput{}, fmt.Errorf("url is required")
	}
	engine := input.Engine
	if engine == "" {
		engine = string(config.EngineChrome)
	}
	inv, err := s.NewInvoker(engine)
	if err != nil {
		return nil, listMetricsOutput{}, err
	}
	defaults := config.Defaults()
	res, err := inv.Invoke(ctx, input.URL, audit.Options{Launcher: defaults.Launcher, Auditor: defaults.Auditor})
	if err != nil {
		return nil, listMetricsOutput{}, err
	}

	out := listMetricsOutput{URL: res.RequestedURL, OverallScore: res.OverallScore, Metrics: []metricView{}}
	for _, key := range res.MetricKeys() {
		m := res.Metrics[key]
		out.Metrics = append(out.Metrics, metricView{
			Key:          key,
			Title:        m.Title,
			ScoringMode:  string(m.ScoringMode),
			Score:        m.Score,
			DisplayValue: m.DisplayValue,
		})
	}
	return nil, out, nil
}

func toOutput(rep *report.Report) budgetOutput {
	sum := rep.Summarize()
	out := budgetOutput{
		Passed:   sum.OK(),
		ExitCode: sum.ExitCode,
		Failed:   sum.Failed,
		Skipped:  sum.Skipped,
		Sites:    make([]siteView, len(rep.Sites)),
		Help:     make([]helpView, len(rep.Help)),
		Markdown: rep.Markdown(),
	}
	for i, site := range rep.Sites {
		sv := siteView{URL: site.URL, Passed: !site.Failed(), Judgments: make([]judgmentView, len(site.Judgments))}
		if site.Err != nil {
			sv.Error = site.Err.Error()
			sv.ErrorKind = report.ErrorKind(site.Err)
		}
		for k, j := range site.Judgments {
			sv.Judgments[k] = judgmentView{
				Scope:    j.Scope,
				Status:   string(j.Status),
				Passed:   j.Passed,
				Skipped:  j.Skipped,
				Actual:   actualString(j.Actual),
				Expected: j.Expected.String(),
				Message:  j.Message,
			}
		}
		out.Sites[i] = sv
	}
	for i, h := range rep.Help {
		out.Help[i] = helpView(h)
	}
	return out
}

func actualString(v any) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprint(v)
}
