// Package display provides human-readable names for machine codes.
//
// Code is for machines, words are for humans: use these in console output
// and Markdown, keep the raw keys for JSON fields, map keys and comparisons.
package display

import "strings"

// --- Metrics ---

var metrics = map[string]string{
	"overall":                   "Overall Performance",
	"first-contentful-paint":    "First Contentful Paint",
	"largest-contentful-paint":  "Largest Contentful Paint",
	"total-blocking-time":       "Total Blocking Time",
	"cumulative-layout-shift":   "Cumulative Layout Shift",
	"speed-index":               "Speed Index",
	"interactive":               "Time to Interactive",
	"server-response-time":      "Server Response Time",
	"time-to-first-byte":        "Time to First Byte",
	"ttfb":                      "Time to First Byte",
	"document-title":            "Document Title",
	"html-has-lang":             "HTML Lang Attribute",
	"meta-viewport":             "Viewport Meta Tag",
	"meta-description":          "Meta Description",
	"uses-http2":                "Uses HTTP/2",
	"render-blocking-resources": "Render-blocking Resources",
}

// Metric returns the human-readable name for a metric key.
// "first-contentful-paint" -> "First Contentful Paint". Unknown keys are
// returned as-is.
func Metric(key string) string {
	if name, ok := metrics[key]; ok {
		return name
	}
	return key
}

// MetricWithKey returns "First Contentful Paint (first-contentful-paint)".
func MetricWithKey(key string) string {
	if name, ok := metrics[key]; ok {
		return name + " (" + key + ")"
	}
	return key
}

// --- Statuses ---

var statuses = map[string]string{
	"pass":           "PASS",
	"fail":           "FAIL",
	"not-applicable": "N/A",
}

// Status returns the console word for a judgment status.
func Status(code string, skipped bool) string {
	if skipped {
		return "SKIP"
	}
	if name, ok := statuses[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// --- Scoring modes ---

var modes = map[string]string{
	"numeric":       "Numeric",
	"binary":        "Binary",
	"notApplicable": "Not Applicable",
	"informative":   "Informative",
	"manual":        "Manual",
	"error":         "Error",
}

// ScoringMode returns the human-readable scoring mode.
func ScoringMode(code string) string {
	if name, ok := modes[code]; ok {
		return name
	}
	return code
}

// --- Failure kinds ---

var kinds = map[string]string{
	"unreachable":    "Site Unreachable",
	"launch failure": "Browser Launch Failure",
	"engine error":   "Audit Engine Failure",
	"timeout":        "Timed Out",
	"unknown-metric": "Unknown Metric",
	"unknown":        "Unknown Failure",
}

// FailureKind returns the human-readable name for a site failure kind.
func FailureKind(code string) string {
	if name, ok := kinds[code]; ok {
		return name
	}
	return code
}
