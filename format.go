package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// formatSize renders a byte count with a binary unit and one decimal,
// capping at terabytes.
func formatSize(bytes int64) string {
	const step = 1024

	if bytes < step {
		return fmt.Sprintf("%d B", bytes)
	}

	value := float64(bytes) / step

	for _, unit := range []string{"KB", "MB", "GB"} {
		if value < step {
			return fmt.Sprintf("%.1f %s", value, unit)
		}

		value /= step
	}

	return fmt.Sprintf("%.1f TB", value)
}

// formatTime renders timestamps the way ls -l does: clock time within the
// current year, the year otherwise.
func formatTime(t time.Time) string {
	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes headers and rows as space-padded columns sized to the
// widest cell. Every row must be as wide as headers.
func printTable(w io.Writer, headers []string, rows [][]string) {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, headers)
	all = append(all, rows...)

	widths := make([]int, len(headers))

	for _, row := range all {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	for _, row := range all {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}

		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
}
