package domain

import "time"

// Stats are the live counters of one crawl run.
type Stats struct {
	RunID          string
	PagesScanned   int
	QuestionsFound int
	Errors         int
	StartTime      time.Time
	EndTime        time.Time
}

// Duration returns the elapsed run time; an unfinished run is measured up to now.
func (s Stats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartTime)
}

// StatsReport is the stats.json artifact written at the end of a run.
type StatsReport struct {
	RunID          string    `json:"run_id"`
	PagesScanned   int       `json:"pagesScanned"`
	QuestionsFound int       `json:"questionsFound"`
	Errors         int       `json:"errors"`
	VisitedURLs    []string  `json:"visitedUrls"`
	FailedURLs     []string  `json:"failedUrls"`
	DurationMs     int64     `json:"durationMs"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Aborted        bool      `json:"aborted"`
	AbortReason    string    `json:"abortReason,omitempty"`
}

// NewStatsReport builds the artifact from the final counters and frontier lists.
func NewStatsReport(s Stats, visited, failed []string) StatsReport {
	if visited == nil {
		visited = []string{}
	}
	if failed == nil {
		failed = []string{}
	}
	return StatsReport{
		RunID:          s.RunID,
		PagesScanned:   s.PagesScanned,
		QuestionsFound: s.QuestionsFound,
		Errors:         s.Errors,
		VisitedURLs:    visited,
		FailedURLs:     failed,
		DurationMs:     s.Duration().Milliseconds(),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
	}
}
