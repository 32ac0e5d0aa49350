package cli

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/openvpi/MakeDiffSinger/internal/batch"
	"github.com/openvpi/MakeDiffSinger/internal/format"
	"github.com/openvpi/MakeDiffSinger/internal/ledger"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderSummary renders the totals of an enhance run.
func renderSummary(s batch.Summary) string {
	rows := [][]string{
		{"Recordings", strconv.Itoa(s.Total)},
		{"Refined", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Not started", strconv.Itoa(s.Skipped)},
		{"Extended words", strconv.Itoa(s.Stats.Extended)},
		{"Extension", format.Seconds(s.Stats.ExtendedSeconds)},
		{"Breaths (AP)", strconv.Itoa(s.Stats.Breaths)},
		{"Spaces (SP)", strconv.Itoa(s.Stats.Spaces)},
		{"Merged gaps", strconv.Itoa(s.Stats.Merged)},
		{"Processing time", format.Elapsed(s.Elapsed)},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

// renderFailures lists the failed recordings with their errors.
func renderFailures(failed []batch.Outcome) string {
	rows := make([][]string, len(failed))
	for i, o := range failed {
		rows[i] = []string{o.Recording.Name, o.Err.Error()}
	}
	return renderTable([]string{"Recording", "Error"}, rows, nil)
}

// renderRuns lists ledger runs.
func renderRuns(runs []ledger.Run) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := "finished"
		if r.FinishedAt.IsZero() {
			status = "incomplete"
		}
		rows[i] = []string{
			shortID(r.ID),
			format.Timestamp(r.StartedAt),
			status,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Failed),
			r.DstDir,
		}
	}
	return renderTable(
		[]string{"Run", "Started", "Status", "Recordings", "Failed", "Destination"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

// renderEntries lists the recordings of one run.
func renderEntries(entries []ledger.Entry) string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		status := "ok"
		if e.Err != "" {
			status = e.Err
		}
		rows[i] = []string{
			e.Name,
			strconv.Itoa(e.Stats.Extended),
			strconv.Itoa(e.Stats.Breaths),
			strconv.Itoa(e.Stats.Spaces),
			strconv.Itoa(e.Stats.Merged),
			format.Elapsed(e.Duration),
			status,
		}
	}
	return renderTable(
		[]string{"Recording", "Extended", "AP", "SP", "Merged", "Time", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

// shortID returns the first block of a UUID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
