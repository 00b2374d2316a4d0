package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"perfomatic/internal/logging"
)

// LighthousePathEnv overrides the lighthouse CLI location.
const LighthousePathEnv = "PERFOMATIC_LIGHTHOUSE"

// EngineLighthouse identifies results produced by the lighthouse CLI.
const EngineLighthouse = "lighthouse"

// Lighthouse audits pages by running the lighthouse CLI and parsing its JSON
// report. The CLI launches and kills its own browser.
type Lighthouse struct {
	// Path to the lighthouse binary; empty resolves $PERFOMATIC_LIGHTHOUSE, then $PATH.
	Path string
}

// Invoke runs lighthouse against url.
func (l *Lighthouse) Invoke(ctx context.Context, url string, opts Options) (*Result, error) {
	logger := logging.New("lighthouse")
	bin, err := l.binary()
	if err != nil {
		return nil, NewFatalError(KindLaunch, url, err)
	}

	args := lighthouseArgs(url, opts)
	logger.Debug("running lighthouse", "bin", bin, "args", args)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, NewInvokerError(KindLaunch, url, runErr)
		}
		// Lighthouse still prints a report with runtimeError set for page load failures.
		res, perr := ParseLighthouse(url, stdout.Bytes())
		switch {
		case perr == nil:
			return res, nil
		case !errors.Is(perr, errUnreadableReport):
			return nil, perr
		}
		return nil, NewInvokerError(KindEngine, url, fmt.Errorf("%w: %s", runErr, lastLine(stderr.String())))
	}
	return ParseLighthouse(url, stdout.Bytes())
}

func (l *Lighthouse) binary() (string, error) {
	for _, p := range []string{l.Path, os.Getenv(LighthousePathEnv)} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("lighthouse binary %s: %w", p, err)
		}
		return p, nil
	}
	p, err := exec.LookPath("lighthouse")
	if err != nil {
		return "", fmt.Errorf("lighthouse CLI not found (npm i -g lighthouse or set %s): %w", LighthousePathEnv, err)
	}
	return p, nil
}

// lighthouseFlags maps auditor option keys onto CLI flags.
var lighthouseFlags = map[string]string{
	"onlyCategories":        "--only-categories",
	"throttlingMethod":      "--throttling-method",
	"formFactor":            "--form-factor",
	"preset":                "--preset",
	"cpuSlowdownMultiplier": "--throttling.cpuSlowdownMultiplier",
	"maxWaitForLoad":        "--max-wait-for-load",
	"locale":                "--locale",
	"onlyAudits":            "--only-audits",
	"skipAudits":            "--skip-audits",
}

func lighthouseArgs(url string, opts Options) []string {
	args := []string{url, "--output=json", "--output-path=stdout", "--quiet"}

	launcher := LauncherFromOptions(opts.Launcher)
	if len(launcher.Flags) > 0 {
		args = append(args, "--chrome-flags="+strings.Join(launcher.Flags, " "))
	}

	keys := make([]string, 0, len(opts.Auditor))
	for k := range opts.Auditor {
		if _, ok := lighthouseFlags[k]; ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := flagValue(opts.Auditor[k]); v != "" {
			args = append(args, lighthouseFlags[k]+"="+v)
		}
	}
	return args
}

func flagValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any, []string:
		return strings.Join(stringList(x), ",")
	}
	return ""
}

// lhr is the subset of the lighthouse JSON report perfomatic reads.
type lhr struct {
	RequestedURL      string `json:"requestedUrl"`
	FinalURL          string `json:"finalUrl"`
	FinalDisplayedURL string `json:"finalDisplayedUrl"`
	FetchTime         string `json:"fetchTime"`
	RuntimeError      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"runtimeError"`
	Categories map[string]struct {
		Score *float64 `json:"score"`
	} `json:"categories"`
	Audits map[string]struct {
		ID               string   `json:"id"`
		Title            string   `json:"title"`
		Description      string   `json:"description"`
		Score            *float64 `json:"score"`
		ScoreDisplayMode string   `json:"scoreDisplayMode"`
		DisplayValue     string   `json:"displayValue"`
		NumericValue     *float64 `json:"numericValue"`
	} `json:"audits"`
}

// unreachableCodes are lighthouse runtime error codes for pages that never loaded.
var unreachableCodes = []string{
	"FAILED_DOCUMENT_REQUEST", "ERRORED_DOCUMENT_REQUEST", "DNS_FAILURE",
	"INVALID_URL", "NO_FCP", "NOT_HTML", "CHROME_INTERSTITIAL_ERROR", "PAGE_HUNG",
}

// errUnreadableReport marks lighthouse output that is not a JSON report.
var errUnreadableReport = errors.New("unreadable lighthouse report")

// ParseLighthouse converts a lighthouse JSON report into a Result.
func ParseLighthouse(url string, data []byte) (*Result, error) {
	var report lhr
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, NewInvokerError(KindEngine, url, fmt.Errorf("%w: %w", errUnreadableReport, err))
	}
	if re := report.RuntimeError; re != nil && re.Code != "" {
		kind := KindEngine
		if slices.Contains(unreachableCodes, re.Code) {
			kind = KindUnreachable
		}
		return nil, NewInvokerError(kind, url, fmt.Errorf("%s: %s", re.Code, re.Message))
	}
	perf, ok := report.Categories["performance"]
	if !ok || perf.Score == nil {
		return nil, NewInvokerError(KindEngine, url, errors.New("report has no performance score"))
	}

	res := &Result{
		RequestedURL: report.RequestedURL,
		FinalURL:     report.FinalDisplayedURL,
		OverallScore: math.Round(*perf.Score*100*1e6) / 1e6,
		Metrics:      make(map[string]Metric, len(report.Audits)),
		Engine:       EngineLighthouse,
	}
	if res.RequestedURL == "" {
		res.RequestedURL = url
	}
	if res.FinalURL == "" {
		res.FinalURL = report.FinalURL
	}
	if t, err := time.Parse(time.RFC3339, report.FetchTime); err == nil {
		res.FetchedAt = t
	}
	for key, a := range report.Audits {
		id := a.ID
		if id == "" {
			id = key
		}
		// LHR titles are one-line summaries and its descriptions are the
		// remediation advice, so they map to Description and HelpText.
		res.Metrics[key] = Metric{
			ID:           id,
			Title:        a.Title,
			Description:  a.Title,
			HelpText:     a.Description,
			Score:        a.Score,
			NumericValue: a.NumericValue,
			DisplayValue: a.DisplayValue,
			ScoringMode:  scoringMode(a.ScoreDisplayMode, a.Score),
		}
	}
	return res, nil
}

func scoringMode(mode string, score *float64) ScoringMode {
	switch mode {
	case "binary":
		return ModeBinary
	case "numeric", "metricSavings":
		if score == nil {
			return ModeNotApplicable
		}
		return ModeNumeric
	case "notApplicable", "manual", "error":
		return ModeNotApplicable
	}
	return ModeInformative
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
