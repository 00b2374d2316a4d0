package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"perfomatic/internal/audit"
	"perfomatic/internal/budget"
	"perfomatic/internal/report"
)

func TestWriteTextfile(t *testing.T) {
	rep := report.New()
	rep.Add("http://a", []budget.Judgment{
		{Scope: "overall", Passed: true, Actual: 92.0},
		{Scope: "first-contentful-paint", Passed: false, Actual: 87.0},
		{Scope: "server-response-time", Passed: true, Actual: true},
		{Scope: "uses-http2", Passed: true, Skipped: true},
	})
	rep.AddError("http://b", audit.NewInvokerError(audit.KindUnreachable, "http://b", errors.New("refused")))
	results := []report.SiteResult{{URL: "http://a", Result: &audit.Result{OverallScore: 92}}}

	e := NewExporter()
	e.Observe(rep, results, time.Unix(1_790_000_000, 0), 1500*time.Millisecond)

	path := filepath.Join(t.TempDir(), "textfile", "perfomatic.prom")
	if err := e.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		`perfomatic_site_overall_score{url="http://a"} 92`,
		`perfomatic_metric_score{metric="first-contentful-paint",url="http://a"} 87`,
		`perfomatic_metric_score{metric="server-response-time",url="http://a"} 1`,
		`perfomatic_judgment_passed{scope="first-contentful-paint",url="http://a"} 0`,
		`perfomatic_site_up{url="http://a"} 1`,
		`perfomatic_site_up{url="http://b"} 0`,
		`perfomatic_run_failures 2`,
		`perfomatic_run_exit_code 2`,
		`perfomatic_run_duration_seconds 1.5`,
		`perfomatic_run_timestamp_seconds 1.79e+09`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "uses-http2") {
		t.Errorf("skipped judgments should not be exported:\n%s", out)
	}
	if strings.Contains(out, `metric_score{metric="overall"`) {
		t.Errorf("overall belongs to site_overall_score only:\n%s", out)
	}
}
