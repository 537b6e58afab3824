package ui

import (
	"io"
	"strings"
	"unicode/utf8"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Column configures a table column.
type Column struct {
	Header   string
	Align    Align
	MaxWidth int // 0 = unlimited; longer cells end with "…"
}

// Table renders plain aligned columns. No colors, so it is safe for CI logs.
type Table struct {
	columns []Column
	rows    [][]string
}

func NewTable(columns ...Column) *Table {
	return &Table{columns: columns}
}

func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = truncate(cells[i], t.columns[i].MaxWidth)
		}
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Render(w io.Writer) error {
	if len(t.columns) == 0 {
		return nil
	}

	widths := make([]int, len(t.columns))
	header := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = truncate(c.Header, c.MaxWidth)
		widths[i] = utf8.RuneCountInString(header[i])
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	separator := make([]string, len(t.columns))
	for i := range separator {
		separator[i] = strings.Repeat("-", widths[i])
	}

	for _, row := range append([][]string{header, separator}, t.rows...) {
		if err := t.writeRow(w, row, widths); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) writeRow(w io.Writer, cells []string, widths []int) error {
	var b strings.Builder
	for i, cell := range cells {
		pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
		if t.columns[i].Align == AlignRight {
			b.WriteString(pad + cell)
		} else {
			b.WriteString(cell + pad)
		}
		if i < len(cells)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, strings.TrimRight(b.String(), " \n")+"\n")
	return err
}

func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || utf8.RuneCountInString(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:maxWidth-1]) + "…"
}
