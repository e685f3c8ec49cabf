package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"convoy/internal/job"
	"convoy/internal/orchestrator"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer ...string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(toRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(footer, columns))
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func toRow(values []string, columns int) table.Row {
	r := make(table.Row, columns)
	for i := range columns {
		if i < len(values) {
			r[i] = values[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

// renderSummary tabulates every job of the batch, rejected entries last.
func renderSummary(handle *orchestrator.BatchHandle) string {
	headers := []string{"Output", "State", "Duration", "Detail"}
	var rows [][]string
	for _, snap := range handle.Jobs() {
		detail := ""
		switch snap.State {
		case job.StateFailed:
			detail = truncateRunes(snap.Failure, 80)
		case job.StateCompleted:
			detail = snap.OutputPath
		}
		duration := "-"
		if !snap.StartedAt.IsZero() {
			duration = formatDuration(snap.Elapsed)
		}
		rows = append(rows, []string{snap.Descriptor.FileName(), string(snap.State), duration, detail})
	}
	for _, r := range handle.Rejected() {
		rows = append(rows, []string{r.Descriptor.FileName(), "rejected", "-", truncateRunes(r.Err.Error(), 80)})
	}
	s := handle.Summary()
	footer := []string{
		fmt.Sprintf("%d jobs", s.Total),
		fmt.Sprintf("%d ok / %d failed", s.Completed, s.Failed),
		"",
		fmt.Sprintf("%d cancelled, %d rejected", s.Cancelled, s.Rejected),
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}, footer...)
}
