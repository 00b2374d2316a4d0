package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"perfomatic/internal/audit"
	"perfomatic/internal/config"
	"perfomatic/internal/display"
	"perfomatic/internal/format"
)

var metricsFlags struct {
	engine   string
	jsonOut  bool
	markdown bool
	catalog  bool
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <url>",
	Short: "List the metric keys an audit of <url> produces, for use in a budget",
	Args: func(cmd *cobra.Command, args []string) error {
		if metricsFlags.catalog {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runMetrics,
}

func init() {
	f := metricsCmd.Flags()
	f.StringVar(&metricsFlags.engine, "engine", string(config.EngineChrome), "Audit engine: chrome or lighthouse")
	f.BoolVar(&metricsFlags.jsonOut, "json", false, "Print the raw audit result as JSON")
	f.BoolVar(&metricsFlags.markdown, "markdown", false, "Render the table as Markdown")
	f.BoolVar(&metricsFlags.catalog, "catalog", false, "List the metrics the chrome engine reports, without auditing")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	mode := format.ASCII
	if metricsFlags.markdown {
		mode = format.Markdown
	}
	if metricsFlags.catalog {
		return printCatalog(cmd.OutOrStdout(), mode)
	}

	inv, err := newInvoker(metricsFlags.engine)
	if err != nil {
		return usageError(err)
	}
	defaults := config.Defaults()
	res, err := inv.Invoke(cmd.Context(), args[0], audit.Options{Launcher: defaults.Launcher, Auditor: defaults.Auditor})
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	out := cmd.OutOrStdout()
	if metricsFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tb := format.NewTable(mode)
	tb.Caption(fmt.Sprintf("%s (overall %s)", res.RequestedURL, format.FmtScore(res.OverallScore)))
	tb.Header("Key", "Name", "Mode", "Score", "Value")
	tb.RightAlign(4)
	for _, key := range res.MetricKeys() {
		m := res.Metrics[key]
		score := "n/a"
		if m.Score != nil {
			score = format.FmtScore(math.Round(*m.Score*1e4) / 100)
		}
		name := m.Title
		if name == "" {
			name = display.Metric(key)
		}
		tb.Row(key, format.Truncate(name, 40), display.ScoringMode(string(m.ScoringMode)), score, m.DisplayValue)
	}
	_, err = fmt.Fprintln(out, tb.String())
	return err
}

func printCatalog(out io.Writer, mode format.Mode) error {
	tb := format.NewTable(mode)
	tb.Caption("chrome engine metrics")
	tb.Header("Metric", "Mode", "Weight")
	tb.RightAlign(3)
	for _, d := range audit.Catalog() {
		weight := "-"
		if d.Weight > 0 {
			weight = format.FmtScore(d.Weight)
		}
		tb.Row(display.MetricWithKey(d.ID), display.ScoringMode(string(d.Mode)), weight)
	}
	_, err := fmt.Fprintln(out, tb.String())
	return err
}
