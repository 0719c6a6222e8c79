package main

import (
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

// pathColumnMax caps filesystem path columns so a deep workspace path cannot
// blow out the run and checkpoint tables.
const pathColumnMax = 72

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range header {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	pathColumn := make([]bool, columns)
	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			r[i] = cell
			if strings.HasPrefix(cell, "/") || strings.HasPrefix(cell, "~") {
				pathColumn[i] = true
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		config := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if i < len(aligns) && aligns[i] == alignRight {
			config.Align = text.AlignRight
		}
		if pathColumn[i] {
			config.WidthMax = pathColumnMax
			config.WidthMaxEnforcer = trimPathLeft
		}
		columnConfigs = append(columnConfigs, config)
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// trimPathLeft shortens a path from the left so the file name stays visible.
func trimPathLeft(col string, maxLen int) string {
	if len(col) <= maxLen || maxLen < 2 {
		return col
	}
	return "…" + col[len(col)-maxLen+1:]
}

func isTerminalFd(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
