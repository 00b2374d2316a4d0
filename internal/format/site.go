package format

import "fmt"

// Check is one judgment line of a site table, already rendered to text.
type Check struct {
	Passed   bool
	Skipped  bool
	Metric   string
	Status   string
	Actual   string
	Expected string
}

// Mark is the first column of a check: "✓", "✗", or "-" for skipped checks.
func (c Check) Mark() string {
	if c.Skipped {
		return "-"
	}
	return BoolMark(c.Passed)
}

// SiteTable renders the checks of one site. Unless verbose, passing checks
// are left out and counted in an "N passing" footer. The ASCII form carries
// the URL as its caption; Markdown callers head the section themselves.
func SiteTable(m Mode, url string, checks []Check, verbose bool) string {
	tb := NewTable(m)
	if m == ASCII {
		tb.Caption(url)
	}
	tb.Header("", "Metric", "Status", "Actual", "Expected")
	tb.RightAlign(4)

	hidden := 0
	for _, c := range checks {
		if c.Passed && !verbose {
			hidden++
			continue
		}
		tb.Row(c.Mark(), c.Metric, c.Status, c.Actual, c.Expected)
	}
	if hidden > 0 {
		tb.Footer("", fmt.Sprintf("%d passing", hidden), "", "", "")
	}
	return tb.String() + "\n"
}

// SiteFailure renders a site that produced no judgments.
func SiteFailure(m Mode, url, kind string, err error) string {
	if m == Markdown {
		return fmt.Sprintf("%s %s: %v\n", BoolMark(false), kind, err)
	}
	return fmt.Sprintf("%s\n  %s %s: %v\n", url, BoolMark(false), kind, err)
}
