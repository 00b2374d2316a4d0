package audit

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func TestParseLighthouse(t *testing.T) {
	res, err := ParseLighthouse("http://localhost:3000", readFixture(t, "lhr.json"))
	if err != nil {
		t.Fatalf("ParseLighthouse: %v", err)
	}
	if res.OverallScore != 92 {
		t.Errorf("OverallScore = %v, want 92", res.OverallScore)
	}
	if res.RequestedURL != "http://localhost:3000/" || res.FinalURL != "http://localhost:3000/home" {
		t.Errorf("urls = %q -> %q", res.RequestedURL, res.FinalURL)
	}
	if !res.FetchedAt.Equal(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("FetchedAt = %v", res.FetchedAt)
	}
	want := []string{"diagnostics", "first-contentful-paint", "server-response-time", "uses-http2"}
	if diff := cmp.Diff(want, res.MetricKeys()); diff != "" {
		t.Errorf("metric keys mismatch (-want +got):\n%s", diff)
	}

	fcp := res.Metrics["first-contentful-paint"]
	if fcp.Score == nil || *fcp.Score != 0.87 || fcp.ScoringMode != ModeNumeric {
		t.Errorf("fcp = %+v", fcp)
	}
	if fcp.HelpText == "" || fcp.Title != "First Contentful Paint" {
		t.Errorf("fcp text fields not mapped: %+v", fcp)
	}
	if m := res.Metrics["server-response-time"]; m.ScoringMode != ModeBinary {
		t.Errorf("server-response-time mode = %s, want binary", m.ScoringMode)
	}
	if m := res.Metrics["uses-http2"]; m.Score != nil || m.ScoringMode != ModeNotApplicable {
		t.Errorf("uses-http2 = %+v, want not applicable", m)
	}
	if m := res.Metrics["diagnostics"]; m.ScoringMode != ModeInformative {
		t.Errorf("diagnostics mode = %s, want informative", m.ScoringMode)
	}
}

func TestParseLighthouse_RuntimeError(t *testing.T) {
	_, err := ParseLighthouse("http://localhost:9", readFixture(t, "lhr_unreachable.json"))
	if KindOf(err) != KindUnreachable {
		t.Fatalf("KindOf = %v, want unreachable (err=%v)", KindOf(err), err)
	}
	if IsFatal(err) {
		t.Error("page load failure must not be fatal")
	}
}

func TestParseLighthouse_NotJSON(t *testing.T) {
	_, err := ParseLighthouse("http://x", []byte("Runtime error encountered: oops"))
	if KindOf(err) != KindEngine {
		t.Fatalf("KindOf = %v, want engine error (err=%v)", KindOf(err), err)
	}
	if IsFatal(err) {
		t.Error("unreadable report must not be fatal")
	}
}

func TestParseLighthouse_NoPerformanceCategory(t *testing.T) {
	_, err := ParseLighthouse("http://x", []byte(`{"categories": {}, "audits": {}}`))
	if KindOf(err) != KindEngine {
		t.Fatalf("KindOf = %v, want engine error", KindOf(err))
	}
}

func TestLighthouseArgs(t *testing.T) {
	args := lighthouseArgs("http://x", Options{
		Launcher: map[string]any{"chromeFlags": []any{"--headless", "--no-sandbox"}},
		Auditor: map[string]any{
			"onlyCategories":   []any{"performance"},
			"throttlingMethod": "devtools",
			"settleMs":         500,
		},
	})
	want := []string{
		"http://x", "--output=json", "--output-path=stdout", "--quiet",
		"--chrome-flags=--headless --no-sandbox",
		"--only-categories=performance",
		"--throttling-method=devtools",
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func fakeLighthouse(t *testing.T, fixture string, exitCode int) string {
	t.Helper()
	return fakeLighthouseOutput(t, string(readFixture(t, fixture)), exitCode)
}

// fakeLighthouseOutput writes a lighthouse stand-in that prints stdout and
// exits with exitCode.
func fakeLighthouseOutput(t *testing.T, stdout string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a unix shell")
	}
	dir := t.TempDir()
	report := filepath.Join(dir, "report.json")
	if err := os.WriteFile(report, []byte(stdout), 0o644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "lighthouse")
	body := "#!/bin/sh\ncat '" + report + "'\nexit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func TestLighthouseInvoke(t *testing.T) {
	lh := &Lighthouse{Path: fakeLighthouse(t, "lhr.json", 0)}
	res, err := lh.Invoke(context.Background(), "http://localhost:3000", Options{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Engine != EngineLighthouse || res.OverallScore != 92 {
		t.Errorf("result = %+v", res)
	}
}

func TestLighthouseInvoke_FailedPageLoad(t *testing.T) {
	lh := &Lighthouse{Path: fakeLighthouse(t, "lhr_unreachable.json", 1)}
	_, err := lh.Invoke(context.Background(), "http://localhost:9", Options{})
	if KindOf(err) != KindUnreachable {
		t.Fatalf("KindOf = %v, want unreachable (err=%v)", KindOf(err), err)
	}
}

func TestLighthouseInvoke_GarbageOutput(t *testing.T) {
	for name, exitCode := range map[string]int{"exit 0": 0, "exit 1": 1} {
		t.Run(name, func(t *testing.T) {
			lh := &Lighthouse{Path: fakeLighthouseOutput(t, "Runtime error encountered: oops", exitCode)}
			_, err := lh.Invoke(context.Background(), "http://x", Options{})
			if KindOf(err) != KindEngine {
				t.Fatalf("KindOf = %v, want engine error (err=%v)", KindOf(err), err)
			}
		})
	}
}

func TestLighthouseInvoke_MissingBinaryIsFatal(t *testing.T) {
	lh := &Lighthouse{Path: filepath.Join(t.TempDir(), "nope")}
	_, err := lh.Invoke(context.Background(), "http://x", Options{})
	if !IsFatal(err) || KindOf(err) != KindLaunch {
		t.Fatalf("expected fatal launch error, got %v", err)
	}
}
