package controller

import (
	"strconv"
	"strings"

	"github.com/feedspot/feedmerge/internal/mergesdk"
)

const (
	StatusDownloadReady = "Download ready ✅"
	ErrorPrefix         = "❌ Error: "
	SummaryHeading      = "✅ Merged Successfully!"
)

// StatusText is the status line for a failed submission.
func StatusText(err error) string {
	return ErrorPrefix + mergesdk.ErrorDetail(err)
}

// Section is one block of the result panel. Inline sections hold a single
// value rendered on the title line.
type Section struct {
	Title  string
	Lines  []string
	Inline bool
}

// SummarySections breaks the result panel into titled blocks, in display order.
// Files and row counts are listed as given, without pairing them up.
func SummarySections(meta *mergesdk.Metadata) []Section {
	rows := make([]string, len(meta.Rows))
	for i, n := range meta.Rows {
		rows[i] = strconv.FormatInt(n, 10)
	}

	return []Section{
		{Title: "Files Processed:", Lines: meta.Files},
		{Title: "Rows per File:", Lines: rows},
		{Title: "Total Rows:", Lines: []string{strconv.FormatInt(meta.TotalRows, 10)}, Inline: true},
		{Title: "Total Columns:", Lines: []string{strconv.FormatInt(meta.TotalCols, 10)}, Inline: true},
	}
}

// RenderSummary renders the result panel as plain text.
func RenderSummary(meta *mergesdk.Metadata) string {
	var b strings.Builder
	b.WriteString(SummaryHeading + "\n")

	inlineStarted := false
	for _, sec := range SummarySections(meta) {
		if sec.Inline {
			if !inlineStarted {
				b.WriteString("\n")
				inlineStarted = true
			}
			b.WriteString(sec.Title + " " + strings.Join(sec.Lines, " ") + "\n")
			continue
		}

		b.WriteString("\n" + sec.Title + "\n")
		for _, line := range sec.Lines {
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}
