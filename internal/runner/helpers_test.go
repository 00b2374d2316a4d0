package runner

import (
	"context"
	"sync"
	"time"

	"perfomatic/internal/audit"
	"perfomatic/internal/config"
)

// fakeEngine serves canned results keyed by URL.
type fakeEngine struct {
	mu      sync.Mutex
	results map[string]*audit.Result
	errs    map[string]error
	delay   map[string]time.Duration
	calls   []string
	active  int
	peak    int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		results: map[string]*audit.Result{},
		errs:    map[string]error{},
		delay:   map[string]time.Duration{},
	}
}

func (f *fakeEngine) site(url string, overall float64, metrics map[string]audit.Metric) *fakeEngine {
	f.results[url] = &audit.Result{RequestedURL: url, FinalURL: url, OverallScore: overall, Metrics: metrics, Engine: "fake"}
	return f
}

func (f *fakeEngine) Invoke(ctx context.Context, url string, _ audit.Options) (*audit.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.active++
	f.peak = max(f.peak, f.active)
	d := f.delay[url]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if res, ok := f.results[url]; ok {
		return res, nil
	}
	return nil, audit.NewInvokerError(audit.KindUnreachable, url, context.Canceled)
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func mustResolve(d config.Descriptor) *config.Config {
	cfg, err := config.Resolve(config.Defaults(), d)
	if err != nil {
		panic(err)
	}
	return cfg
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64 { return &v }
func intp(v int) *int { return &v }
func boolp(v bool) *bool { return &v }
