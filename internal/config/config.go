// Package config resolves the effective audit configuration from built-in
// defaults and a user project descriptor.
package config

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Timeouts used when neither defaults nor user set one.
const (
	DefaultTimeoutOverall = 5 * time.Minute
	DefaultTimeoutPerSite = time.Minute
)

// Engine names the audit engine implementation.
type Engine string

const (
	EngineChrome     Engine = "chrome"
	EngineLighthouse Engine = "lighthouse"
)

// NotApplicablePolicy decides how an audit with no score (not applicable to
// the page) counts toward the result.
type NotApplicablePolicy string

const (
	NotApplicablePass NotApplicablePolicy = "pass"
	NotApplicableFail NotApplicablePolicy = "fail"
	NotApplicableSkip NotApplicablePolicy = "skip"
)

// Config is the resolved, validated configuration. Values returned by Resolve
// share no memory with their inputs; treat them as read-only.
type Config struct {
	URLs                 []string
	Overall              *float64
	Budget               Budget
	Verbose              bool
	ShowAvailableMetrics bool
	TimeoutOverall       time.Duration
	TimeoutPerSite       time.Duration
	Concurrency          int
	Engine               Engine
	NotApplicable        NotApplicablePolicy
	Launcher             map[string]any
	Auditor              map[string]any
}

// OverallThreshold returns the overall score bar and whether one is set.
func (c *Config) OverallThreshold() (float64, bool) {
	if c.Overall == nil {
		return 0, false
	}
	return *c.Overall, true
}

// Defaults returns the built-in descriptor every user descriptor is merged over.
func Defaults() Descriptor {
	return Descriptor{
		Overall:              ptr(90.0),
		Budget:               RawBudget{},
		Verbose:              ptr(false),
		ShowAvailableMetrics: ptr(false),
		TimeoutOverallMs:     ptr(DefaultTimeoutOverall.Milliseconds()),
		TimeoutPerSiteMs:     ptr(DefaultTimeoutPerSite.Milliseconds()),
		Concurrency:          ptr(1),
		Engine:               ptr(string(EngineChrome)),
		NotApplicable:        ptr(string(NotApplicableSkip)),
		Launcher: map[string]any{
			"chromeFlags": []any{"--headless"},
		},
		Auditor: map[string]any{
			"onlyCategories":   []any{"performance"},
			"throttlingMethod": "devtools",
		},
	}
}

// Resolve merges user over defaults and validates the result.
//
// Scalars are overridden key by key. Launcher and auditor maps merge one level
// deep with user keys winning. A user budget replaces the default budget
// wholesale. An overall threshold of 0 disables the overall judgment.
func Resolve(defaults, user Descriptor) (*Config, error) {
	if len(user.URLs) == 0 {
		return nil, newConfigError("urls", "at least one URL is required")
	}
	merged := merge(defaults, user)
	cfg := &Config{
		URLs:                 make([]string, 0, len(merged.URLs)),
		Verbose:              deref(merged.Verbose),
		ShowAvailableMetrics: deref(merged.ShowAvailableMetrics),
		Launcher:             maps.Clone(merged.Launcher),
		Auditor:              maps.Clone(merged.Auditor),
	}
	for i, u := range merged.URLs {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil, newConfigError(fmt.Sprintf("urls[%d]", i), "empty URL")
		}
		cfg.URLs = append(cfg.URLs, u)
	}

	if merged.Overall != nil && *merged.Overall != 0 {
		o := *merged.Overall
		if o < 0 || o > 100 {
			return nil, newConfigError("overall", "threshold %v out of range [0,100]", o)
		}
		cfg.Overall = &o
	}

	entries := make([]Entry, 0, len(merged.Budget))
	for _, raw := range merged.Budget {
		th, err := parseThreshold(raw.Key, raw.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: raw.Key, Threshold: th})
	}
	b, err := NewBudget(entries...)
	if err != nil {
		return nil, err
	}
	cfg.Budget = b

	if cfg.TimeoutOverall, err = millis("timeoutOverallMs", merged.TimeoutOverallMs, DefaultTimeoutOverall); err != nil {
		return nil, err
	}
	if cfg.TimeoutPerSite, err = millis("timeoutPerSiteMs", merged.TimeoutPerSiteMs, DefaultTimeoutPerSite); err != nil {
		return nil, err
	}

	cfg.Concurrency = 1
	if merged.Concurrency != nil {
		if *merged.Concurrency < 1 {
			return nil, newConfigError("concurrency", "must be at least 1, got %d", *merged.Concurrency)
		}
		cfg.Concurrency = *merged.Concurrency
	}

	switch e := Engine(strings.ToLower(deref(merged.Engine))); e {
	case "", EngineChrome:
		cfg.Engine = EngineChrome
	case EngineLighthouse:
		cfg.Engine = e
	default:
		return nil, newConfigError("engine", "unknown engine %q (want chrome or lighthouse)", e)
	}

	switch p := NotApplicablePolicy(strings.ToLower(deref(merged.NotApplicable))); p {
	case "", NotApplicableSkip:
		cfg.NotApplicable = NotApplicableSkip
	case NotApplicablePass, NotApplicableFail:
		cfg.NotApplicable = p
	default:
		return nil, newConfigError("notApplicable", "unknown policy %q (want pass, fail or skip)", p)
	}

	return cfg, nil
}

func merge(def, user Descriptor) Descriptor {
	out := def
	if user.URLs != nil {
		out.URLs = user.URLs
	}
	if user.Overall != nil {
		out.Overall = user.Overall
	}
	if user.Budget != nil {
		out.Budget = user.Budget
	}
	if user.Verbose != nil {
		out.Verbose = user.Verbose
	}
	if user.ShowAvailableMetrics != nil {
		out.ShowAvailableMetrics = user.ShowAvailableMetrics
	}
	if user.TimeoutOverallMs != nil {
		out.TimeoutOverallMs = user.TimeoutOverallMs
	}
	if user.TimeoutPerSiteMs != nil {
		out.TimeoutPerSiteMs = user.TimeoutPerSiteMs
	}
	if user.Concurrency != nil {
		out.Concurrency = user.Concurrency
	}
	if user.Engine != nil {
		out.Engine = user.Engine
	}
	if user.NotApplicable != nil {
		out.NotApplicable = user.NotApplicable
	}
	out.Launcher = mergeOptions(def.Launcher, user.Launcher)
	out.Auditor = mergeOptions(def.Auditor, user.Auditor)
	return out
}

func mergeOptions(def, user map[string]any) map[string]any {
	out := make(map[string]any, len(def)+len(user))
	maps.Copy(out, def)
	maps.Copy(out, user)
	return out
}

func millis(field string, v *int64, fallback time.Duration) (time.Duration, error) {
	if v == nil {
		return fallback, nil
	}
	if *v <= 0 {
		return 0, newConfigError(field, "must be positive, got %d", *v)
	}
	return time.Duration(*v) * time.Millisecond, nil
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
