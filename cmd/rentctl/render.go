package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/liststore"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/resource"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const maxCellWidth = 40

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func validFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return &commandError{message: fmt.Sprintf("unknown output format %q (use table, json or yaml)", format)}
	}
}

// render writes the snapshot view in format. columns fixes the table columns.
// JSON and YAML carry the typed records of the resource; the number of
// records left out because they failed validation is returned.
func render(w io.Writer, format string, columns []string, snap liststore.Snapshot) (int, error) {
	switch format {
	case formatJSON, formatYAML:
		out, skipped := typed(snap)
		if format == formatJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return skipped, enc.Encode(out)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return skipped, err
		}
		return skipped, enc.Close()
	default:
		if len(snap.View) == 0 {
			_, err := fmt.Fprintf(w, "no %s\n", snap.Name)
			return 0, err
		}
		if _, err := fmt.Fprintln(w, renderTable(columns, snap.View)); err != nil {
			return 0, err
		}
		_, err := fmt.Fprintln(w, summaryStyle.Render(summary(snap)))
		return 0, err
	}
}

// typed returns the typed views of the snapshot, or plain records for
// resources without one.
func typed(snap liststore.Snapshot) (any, int) {
	views, skipped, err := resource.Views(snap.Name, snap.View)
	if err != nil {
		return records(snap.View), 0
	}
	return views, skipped
}

// skippedNote describes records left out of structured output.
func skippedNote(skipped int, name string) string {
	return fmt.Sprintf("%d %s record(s) failed validation and were left out", skipped, name)
}

func renderTable(columns []string, items []*normalize.Item) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cell(item, col)
		}
		rows = append(rows, row)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func summary(snap liststore.Snapshot) string {
	if len(snap.View) == len(snap.Items) {
		return fmt.Sprintf("%d %s", len(snap.Items), snap.Name)
	}
	return fmt.Sprintf("%d of %d %s shown", len(snap.View), len(snap.Items), snap.Name)
}

func cell(item *normalize.Item, field string) string {
	var s string
	if t, ok := item.Time(field); ok {
		s = t.Format("2006-01-02 15:04")
	} else {
		s = item.String(field)
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

// records converts items into plain values for the JSON and YAML encoders.
func records(items []*normalize.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		rec := make(map[string]any, len(item.Fields))
		for k, v := range item.Fields {
			rec[k] = plain(v)
		}
		out = append(out, rec)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}
