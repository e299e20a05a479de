package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Table lays out rows in aligned columns under a bold header. Cells are
// padded before styling so escape sequences do not skew the widths.
type Table struct {
	headers []string
	rows    [][]string
	styles  map[int]func(string) string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, styles: map[int]func(string) string{}}
}

// Style renders every cell of column col with fn.
func (t *Table) Style(col int, fn func(string) string) *Table {
	t.styles[col] = fn
	return t
}

// AddRow appends a row. Missing cells are blank; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// String renders the table, one line per row.
func (t *Table) String() string {
	if len(t.headers) == 0 {
		return ""
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	var b strings.Builder
	line := func(cells []string, style func(int, string) string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(cells)-1 {
				b.WriteString(style(i, cell))
				continue
			}
			b.WriteString(style(i, cell))
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
		b.WriteString("\n")
	}

	line(t.headers, func(_ int, s string) string { return Header(s) })
	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("─", w)
	}
	line(rules, func(_ int, s string) string { return Dim(s) })
	for _, row := range t.rows {
		line(row, func(i int, s string) string {
			if fn := t.styles[i]; fn != nil && s != "" {
				return fn(s)
			}
			return s
		})
	}
	return b.String()
}

// FormatCount formats a count with its singular or plural noun.
func FormatCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
