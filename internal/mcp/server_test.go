package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"perfomatic/internal/audit"
	mcpserver "perfomatic/internal/mcp"
	"perfomatic/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

// fakeInvoker returns a fixed result for every URL.
func fakeInvoker(overall float64, metrics map[string]audit.Metric) func(string) (audit.Invoker, error) {
	return func(engine string) (audit.Invoker, error) {
		if engine != "chrome" && engine != "lighthouse" {
			return nil, errors.New("unknown engine " + engine)
		}
		return audit.InvokerFunc(func(_ context.Context, url string, _ audit.Options) (*audit.Result, error) {
			return &audit.Result{RequestedURL: url, OverallScore: overall, Metrics: metrics, Engine: engine}, nil
		}), nil
	}
}

func newTestServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	srv := mcpserver.NewServer("test")
	srv.ProjectRoot = t.TempDir()
	srv.NewInvoker = fakeInvoker(92, map[string]audit.Metric{
		"time-to-first-byte":     {Score: audit.Score(1), ScoringMode: audit.ModeBinary, Title: "Time to First Byte"},
		"first-contentful-paint": {Score: audit.Score(0.87), ScoringMode: audit.ModeNumeric, HelpText: "Eliminate render-blocking resources."},
	})
	return srv
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, textOf(res))
	}
	result := make(map[string]any)
	if err := json.Unmarshal([]byte(textOf(res)), &result); err != nil {
		t.Fatalf("unmarshal tool result: %v (text: %s)", err, textOf(res))
	}
	return result
}

func callToolErr(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s): expected IsError=true, got %s", name, textOf(res))
	}
	return textOf(res)
}

func textOf(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestServer_ToolDiscovery(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{"evaluate_budget": false, "run_budget": false, "list_metrics": false}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestEvaluateBudget_Pass(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	out := callTool(t, ctx, session, "evaluate_budget", map[string]any{
		"descriptor":  `{"overall": 90, "budget": {"time-to-first-byte": true}}`,
		"result_json": `{"requestedUrl": "http://localhost:3000", "overallScore": 92, "metrics": {"time-to-first-byte": {"score": 1, "scoringMode": "binary"}}}`,
	})
	if out["passed"] != true || out["exit_code"] != 0.0 {
		t.Fatalf("expected pass, got %v", out)
	}
	sites := out["sites"].([]any)
	judgments := sites[0].(map[string]any)["judgments"].([]any)
	if len(judgments) != 2 || judgments[0].(map[string]any)["scope"] != "overall" {
		t.Errorf("judgments = %v", judgments)
	}
}

func TestEvaluateBudget_YAMLDescriptorFails(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	out := callTool(t, ctx, session, "evaluate_budget", map[string]any{
		"descriptor":  "overall: 90\nbudget:\n  first-contentful-paint: 90\n",
		"result_json": `{"requestedUrl": "http://x", "overallScore": 85, "metrics": {"first-contentful-paint": {"score": 0.5, "helpText": "Inline critical CSS."}}}`,
	})
	if out["passed"] != false || out["exit_code"] != 2.0 {
		t.Fatalf("expected two failures, got %v", out)
	}
	help := out["help"].([]any)
	if len(help) != 2 || help[1].(map[string]any)["msg"] != "Inline critical CSS." {
		t.Errorf("help = %v", help)
	}
	if !strings.Contains(out["markdown"].(string), "FAILED") {
		t.Errorf("markdown = %v", out["markdown"])
	}
}

func TestEvaluateBudget_Lighthouse(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "audit", "testdata", "lhr.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	out := callTool(t, ctx, session, "evaluate_budget", map[string]any{
		"descriptor":  `{"overall": 90, "budget": {"first-contentful-paint": 90}}`,
		"result_json": string(data),
		"format":      "lighthouse",
	})
	if out["exit_code"] != 1.0 {
		t.Fatalf("fcp 87 < 90 should fail once, got %v", out)
	}
}

func TestEvaluateBudget_UnknownMetric(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	out := callTool(t, ctx, session, "evaluate_budget", map[string]any{
		"descriptor":  `{"budget": {"first-contentful-paint": 90}}`,
		"result_json": `{"requestedUrl": "http://x", "overallScore": 99, "metrics": {}}`,
	})
	site := out["sites"].([]any)[0].(map[string]any)
	if site["error_kind"] != "unknown-metric" {
		t.Errorf("site = %v", site)
	}
}

func TestEvaluateBudget_BadInput(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	msg := callToolErr(t, ctx, session, "evaluate_budget", map[string]any{
		"descriptor":  `{"budget": {"first-contentful-paint": "fast"}}`,
		"result_json": `{"requestedUrl": "http://x"}`,
	})
	if !strings.Contains(msg, "first-contentful-paint") {
		t.Errorf("error should name the key: %s", msg)
	}
	callToolErr(t, ctx, session, "evaluate_budget", map[string]any{
		"descriptor":  `{}`,
		"result_json": `{"requestedUrl": "http://x"}`,
		"format":      "har",
	})
}

func TestRunBudget_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	hist := store.NewMemStore()
	srv.History = hist
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "run_budget", map[string]any{
		"descriptor": `{"urls": ["http://a", "http://b"], "overall": 90, "budget": {"time-to-first-byte": true}}`,
	})
	if out["passed"] != true || len(out["sites"].([]any)) != 2 {
		t.Fatalf("unexpected output: %v", out)
	}
	id, _ := out["run_id"].(string)
	run, err := hist.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun(%q): %v", id, err)
	}
	if len(run.Sites) != 2 || run.Engine != "chrome" {
		t.Errorf("run = %+v", run)
	}
}

func TestRunBudget_DiscoversDescriptor(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	pkg := `{"name": "site", "perfomatic": {"urls": ["http://localhost:3000"], "budget": {"first-contentful-paint": 90}}}`
	if err := os.WriteFile(filepath.Join(srv.ProjectRoot, "package.json"), []byte(pkg), 0o644); err != nil {
		t.Fatal(err)
	}
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "run_budget", map[string]any{"engine": "lighthouse"})
	if out["exit_code"] != 1.0 {
		t.Fatalf("fcp 87 < 90 should fail, got %v", out)
	}
}

func TestRunBudget_NoDescriptor(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))
	if msg := callToolErr(t, ctx, session, "run_budget", map[string]any{}); !strings.Contains(msg, "no descriptor") {
		t.Errorf("msg = %s", msg)
	}
}

func TestListMetrics(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t))

	out := callTool(t, ctx, session, "list_metrics", map[string]any{"url": "http://a"})
	metrics := out["metrics"].([]any)
	if len(metrics) != 2 {
		t.Fatalf("metrics = %v", metrics)
	}
	first := metrics[0].(map[string]any)
	if first["key"] != "first-contentful-paint" || first["scoring_mode"] != "numeric" {
		t.Errorf("first metric = %v", first)
	}

	callToolErr(t, ctx, session, "list_metrics", map[string]any{"url": ""})
}
