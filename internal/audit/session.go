package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/chromedp/chromedp"

	"perfomatic/internal/logging"
)

// ChromePathEnv overrides the browser binary chromedp would otherwise locate.
const ChromePathEnv = "PERFOMATIC_CHROME_PATH"

// Launcher holds browser launch settings.
type Launcher struct {
	ExecPath string
	// Flags are chrome command-line switches such as "--headless" or
	// "--window-size=1350,940". Headless mode is on only if listed.
	Flags []string
}

// LauncherFromOptions reads launcher settings from the configuration's
// launcher map ("chromeFlags", "chromePath").
func LauncherFromOptions(opts map[string]any) Launcher {
	l := Launcher{ExecPath: os.Getenv(ChromePathEnv)}
	if p, ok := opts["chromePath"].(string); ok && p != "" {
		l.ExecPath = p
	}
	l.Flags = stringList(opts["chromeFlags"])
	return l
}

func (l Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	headless := false
	for _, f := range l.Flags {
		name, value, hasValue := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if name == "" {
			continue
		}
		if name == "headless" {
			headless = true
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}
	return opts
}

// WithSession launches a browser, runs fn against it and always shuts the
// browser down afterwards, whether fn returns an error or panics. A browser
// that fails to start yields a KindLaunch InvokerError; a missing binary is fatal.
func WithSession(ctx context.Context, url string, l Launcher, fn func(ctx context.Context) error) (err error) {
	logger := logging.New("session")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return launchError(url, err)
	}
	logger.Debug("browser started", "url", url)

	defer func() {
		if cerr := chromedp.Cancel(browserCtx); cerr != nil && !errors.Is(cerr, context.Canceled) {
			logger.Warn("browser shutdown", "url", url, "error", cerr)
		}
		logger.Debug("browser stopped", "url", url)
	}()

	return fn(browserCtx)
}

func launchError(url string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "executable file not found") {
		return NewFatalError(KindLaunch, url, fmt.Errorf("chrome not found (set %s or launcher.chromePath): %w", ChromePathEnv, err))
	}
	return NewInvokerError(KindLaunch, url, err)
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(list)
	}
	return nil
}
