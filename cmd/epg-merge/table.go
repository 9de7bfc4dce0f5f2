package main

import (
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws the rounded terminal table. Headers keep their case and
// follow their column's alignment; short rows are padded with empty cells.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(padRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(padRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: align}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(cells []string, width int) table.Row {
	r := make(table.Row, width)
	for i := range r {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

// renderTSV is the non-terminal form of renderTable: one header line, one
// line per row, tabs and newlines inside cells replaced by spaces.
func renderTSV(headers []string, rows [][]string) string {
	var b strings.Builder
	writeTSVLine(&b, headers)
	for _, row := range rows {
		cells := make([]string, len(headers))
		copy(cells, row)
		writeTSVLine(&b, cells)
	}
	return b.String()
}

func writeTSVLine(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(c))
	}
	b.WriteByte('\n')
}

// writeRows picks the rounded table on a terminal and TSV otherwise.
func writeRows(w io.Writer, headers []string, rows [][]string, aligns []columnAlignment) error {
	var out string
	if isTerminal(w) {
		out = renderTable(headers, rows, aligns) + "\n"
	} else {
		out = renderTSV(headers, rows)
	}
	_, err := io.WriteString(w, out)
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
