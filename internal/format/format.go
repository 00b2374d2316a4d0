// Package format renders report tables for the terminal and for Markdown
// summaries (CI job pages, MCP tool output).
package format

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// Table is one table plus an optional caption line. The caption is written
// above the table as-is and is never wrapped to the table width, so URLs
// stay intact and greppable.
type Table struct {
	mode    Mode
	caption string
	right   []int
	w       table.Writer
}

// NewTable returns an empty table rendered in mode m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{mode: m, w: w}
}

// Caption sets the line printed above the table.
func (t *Table) Caption(s string) { t.caption = s }

// Header sets the column headers. ASCII tables upper-case them.
func (t *Table) Header(cols ...any) { t.w.AppendHeader(table.Row(cols)) }

// Row appends one row.
func (t *Table) Row(vals ...any) { t.w.AppendRow(table.Row(vals)) }

// Footer appends a totals row.
func (t *Table) Footer(vals ...any) { t.w.AppendFooter(table.Row(vals)) }

// RightAlign right-aligns the given 1-based columns (scores, counts).
func (t *Table) RightAlign(cols ...int) { t.right = append(t.right, cols...) }

func (t *Table) String() string {
	if len(t.right) > 0 {
		cfgs := make([]table.ColumnConfig, len(t.right))
		for i, n := range t.right {
			cfgs[i] = table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight}
		}
		t.w.SetColumnConfigs(cfgs)
	}

	var b strings.Builder
	if t.caption != "" {
		if t.mode == Markdown {
			b.WriteString("**" + t.caption + "**\n\n")
		} else {
			b.WriteString(t.caption + "\n")
		}
	}
	if t.mode == Markdown {
		b.WriteString(t.w.RenderMarkdown())
	} else {
		b.WriteString(t.w.Render())
	}
	return b.String()
}
