package audit

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"perfomatic/internal/logging"
)

// EngineChrome identifies results produced by Chrome.
const EngineChrome = "chrome"

// DefaultSettle is how long Chrome waits after the load event before reading
// performance entries.
const DefaultSettle = 2 * time.Second

// collectTimings gathers navigation, paint, LCP, layout-shift and long-task
// entries through buffered PerformanceObservers.
const collectTimings = `new Promise(resolve => {
  const out = {ttfb: null, fcp: null, lcp: null, cls: null, tbt: null};
  const nav = performance.getEntriesByType('navigation')[0];
  if (nav) out.ttfb = Math.max(0, nav.responseStart - nav.requestStart);
  const fcp = performance.getEntriesByName('first-contentful-paint')[0];
  if (fcp) out.fcp = fcp.startTime;
  const observe = (type, cb) => {
    try {
      new PerformanceObserver(list => list.getEntries().forEach(cb)).observe({type, buffered: true});
      return true;
    } catch (e) { return false; }
  };
  let cls = 0, tbt = 0;
  const hasCLS = observe('layout-shift', e => { if (!e.hadRecentInput) cls += e.value; });
  const hasTBT = observe('longtask', e => {
    if (out.fcp !== null && e.startTime + e.duration <= out.fcp) return;
    tbt += Math.max(0, e.duration - 50);
  });
  observe('largest-contentful-paint', e => { out.lcp = e.startTime; });
  setTimeout(() => {
    if (hasCLS) out.cls = cls;
    if (hasTBT && out.fcp !== null) out.tbt = tbt;
    resolve(out);
  }, 100);
})`

const documentHTML = `document.documentElement && document.contentType === 'text/html' ? document.documentElement.outerHTML : ''`

// Chrome audits pages directly through the DevTools protocol: it loads the
// page in a fresh headless browser, reads Performance API timings and scores
// them on the same log-normal curves lighthouse uses.
type Chrome struct {
	Settle time.Duration
	// Now is stubbed in tests.
	Now func() time.Time
	log *slog.Logger
}

// NewChrome returns a Chrome engine with default settings.
func NewChrome() *Chrome {
	return &Chrome{Settle: DefaultSettle, Now: time.Now, log: logging.New("chrome")}
}

type chromeSettings struct {
	settle      time.Duration
	cpuSlowdown float64
}

func (c *Chrome) settings(auditor map[string]any) chromeSettings {
	s := chromeSettings{settle: c.Settle, cpuSlowdown: 1}
	if ms, ok := number(auditor["settleMs"]); ok && ms >= 0 {
		s.settle = time.Duration(ms) * time.Millisecond
	}
	if rate, ok := number(auditor["cpuSlowdownMultiplier"]); ok && rate >= 1 {
		s.cpuSlowdown = rate
	}
	return s
}

// Invoke loads url in a dedicated browser session and scores it.
func (c *Chrome) Invoke(ctx context.Context, url string, opts Options) (*Result, error) {
	s := c.settings(opts.Auditor)
	var (
		timings  pageTimings
		html     string
		finalURL string
	)
	err := WithSession(ctx, url, LauncherFromOptions(opts.Launcher), func(ctx context.Context) error {
		var actions []chromedp.Action
		if s.cpuSlowdown > 1 {
			actions = append(actions, emulation.SetCPUThrottlingRate(s.cpuSlowdown))
		}
		actions = append(actions,
			chromedp.Navigate(url),
			chromedp.Sleep(s.settle),
			chromedp.Evaluate(collectTimings, &timings, awaitPromise),
			chromedp.Location(&finalURL),
			chromedp.Evaluate(documentHTML, &html),
		)
		return chromedp.Run(ctx, actions...)
	})
	if err != nil {
		return nil, classifyRunError(ctx, url, err)
	}
	if c.log != nil {
		c.log.Debug("page audited", "url", url, "final_url", finalURL)
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	metrics := scoreTimings(timings)
	maps.Copy(metrics, documentAudits(html))
	return &Result{
		RequestedURL: url,
		FinalURL:     finalURL,
		OverallScore: overallScore(metrics),
		Metrics:      metrics,
		Engine:       EngineChrome,
		FetchedAt:    now(),
	}, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// classifyRunError maps a chromedp failure onto the invoker error kinds.
// Context expiry is passed through so callers can report it as a timeout.
func classifyRunError(ctx context.Context, url string, err error) error {
	var ie *InvokerError
	if errors.As(err, &ie) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if strings.Contains(err.Error(), "net::ERR_") {
		return NewInvokerError(KindUnreachable, url, err)
	}
	return NewInvokerError(KindEngine, url, err)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
