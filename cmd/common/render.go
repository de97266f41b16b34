package common

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
)

// ZeroResultHints are printed when a crawl finds no questions.
var ZeroResultHints = []string{
	"The site structure may have changed; compare the selectors with a live page",
	"The site may be rate limiting requests; try a larger --delay",
	"Network problems: check connectivity or raise --timeout",
	"Question pages may require authentication; run with --render --headless=false and log in",
	"The content may need JavaScript rendering; try --render",
}

// NewTable returns a table writer mirrored to w.
func NewTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// RenderCrawlSummary prints the run counters, artifact paths and sink
// results of one crawl.
func RenderCrawlSummary(w io.Writer, s *bootstrap.CrawlSummary) {
	report := s.Result.Report

	t := NewTable(w, "Crawl summary")
	t.AppendRows(statsRows(report))
	t.AppendRow(table.Row{"Auth skipped", s.Result.AuthSkipped})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Questions file", s.QuestionsPath})
	t.AppendRow(table.Row{"Stats file", s.StatsPath})
	t.Render()

	RenderDelivery(w, s.Delivery)

	if report.QuestionsFound == 0 {
		RenderHints(w)
	}
}

// RenderImportSummary prints the validation counters and sink results of
// one import.
func RenderImportSummary(w io.Writer, s *bootstrap.ImportSummary) {
	t := NewTable(w, "Import summary")
	t.AppendRow(table.Row{"Records read", s.Read})
	t.AppendRow(table.Row{"Invalid", s.Invalid})
	t.AppendRow(table.Row{"Duplicates", s.Duplicates})
	t.AppendRow(table.Row{"Questions", len(s.Questions)})
	t.Render()

	RenderDelivery(w, s.Delivery)
}

// RenderDelivery prints one row per sink.
func RenderDelivery(w io.Writer, d bootstrap.Delivery) {
	if d.DryRun {
		fmt.Fprintln(w, "Dry run: no records were sent to the sinks.")
		return
	}
	if len(d.Results) == 0 {
		fmt.Fprintln(w, "No sinks configured.")
		return
	}

	t := NewTable(w, "Sinks")
	t.AppendHeader(table.Row{"Sink", "Batches", "Upserted", "Errors"})
	for _, r := range d.Results {
		t.AppendRow(table.Row{r.Sink, r.Batches, r.InsertedOrUpdated, r.ErrorCount})
	}
	if d.Tracked {
		t.AppendFooter(table.Row{"New since last export", "", d.NewQuestions, ""})
	}
	t.Render()

	for _, r := range d.Results {
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  %v\n", err)
		}
	}
}

// RenderStats prints a stats artifact, including its failed URLs.
func RenderStats(w io.Writer, report domain.StatsReport) {
	t := NewTable(w, "Run "+report.RunID)
	t.AppendRows(statsRows(report))
	t.AppendRow(table.Row{"Started", formatTime(report.StartTime)})
	t.AppendRow(table.Row{"Ended", formatTime(report.EndTime)})
	t.Render()

	if len(report.FailedURLs) == 0 {
		return
	}
	failed := NewTable(w, "Failed URLs")
	for i, u := range report.FailedURLs {
		failed.AppendRow(table.Row{strconv.Itoa(i + 1), u})
	}
	failed.Render()
}

// RenderHints prints the zero-result diagnostics.
func RenderHints(w io.Writer) {
	fmt.Fprintln(w, "No questions were found. Possible causes:")
	for _, hint := range ZeroResultHints {
		fmt.Fprintf(w, "  - %s\n", hint)
	}
}

func statsRows(report domain.StatsReport) []table.Row {
	rows := []table.Row{
		{"Pages scanned", report.PagesScanned},
		{"Questions found", report.QuestionsFound},
		{"Errors", report.Errors},
		{"Visited URLs", len(report.VisitedURLs)},
		{"Failed URLs", len(report.FailedURLs)},
		{"Duration", (time.Duration(report.DurationMs) * time.Millisecond).String()},
	}
	if report.Aborted {
		rows = append(rows, table.Row{"Aborted", report.AbortReason})
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
