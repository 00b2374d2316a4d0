package report

import (
	"fmt"
	"io"
	"strings"

	"perfomatic/internal/budget"
	"perfomatic/internal/config"
	"perfomatic/internal/display"
	"perfomatic/internal/format"
)

// Banner separates the run log from the results.
const Banner = "==========RESULTS=========="

// Print writes the help block, the results banner, one judgment table per
// site and the totals line. Passing judgments are listed only when verbose.
func (r *Report) Print(w io.Writer, verbose bool) error {
	var b strings.Builder

	if len(r.Help) > 0 {
		b.WriteString("\n")
		for _, h := range r.Help {
			fmt.Fprintf(&b, "HELP (%s): %s\n\n", h.Key, h.Msg)
		}
	}
	fmt.Fprintf(&b, "\n%s\n\n", Banner)

	for _, s := range r.Sites {
		b.WriteString(siteTable(s, format.ASCII, verbose))
		b.WriteString("\n")
	}

	sum := r.Summarize()
	fmt.Fprintf(&b, "%d passing, %d failing, %d skipped across %d site(s)\n",
		sum.Passed, sum.Failed, sum.Skipped, sum.Sites)

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the report as Markdown tables, all judgments included.
func (r *Report) Markdown() string {
	var b strings.Builder
	sum := r.Summarize()
	verdict := "PASSED"
	if !sum.OK() {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "## Performance budget %s\n\n", verdict)

	tb := format.NewTable(format.Markdown)
	tb.Header("URL", "Result")
	for _, s := range r.Sites {
		tb.Row(s.URL, format.BoolMark(!s.Failed()))
	}
	tb.Footer(fmt.Sprintf("%d passing, %d failing, %d skipped", sum.Passed, sum.Failed, sum.Skipped), "")
	b.WriteString(tb.String())
	b.WriteString("\n")

	for _, s := range r.Sites {
		fmt.Fprintf(&b, "\n### %s\n\n", s.URL)
		b.WriteString(siteTable(s, format.Markdown, true))
		b.WriteString("\n")
	}

	if len(r.Help) > 0 {
		b.WriteString("\n### Help\n\n")
		for _, h := range r.Help {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", display.Metric(h.Key), h.URL, h.Msg)
		}
	}
	return b.String()
}

func siteTable(s Site, m format.Mode, verbose bool) string {
	if s.Err != nil {
		return format.SiteFailure(m, s.URL, display.FailureKind(ErrorKind(s.Err)), s.Err)
	}
	checks := make([]format.Check, len(s.Judgments))
	for i, j := range s.Judgments {
		checks[i] = format.Check{
			Passed:   j.Passed,
			Skipped:  j.Skipped,
			Metric:   display.Metric(j.Scope),
			Status:   display.Status(string(j.Status), j.Skipped),
			Actual:   actual(j),
			Expected: expected(j),
		}
	}
	return format.SiteTable(m, s.URL, checks, verbose)
}

func actual(j budget.Judgment) string {
	switch v := j.Actual.(type) {
	case nil:
		return "n/a"
	case float64:
		return format.FmtScore(v)
	default:
		return fmt.Sprint(v)
	}
}

func expected(j budget.Judgment) string {
	if j.Expected.Kind == config.Numeric {
		return ">= " + j.Expected.String()
	}
	return j.Expected.String()
}
