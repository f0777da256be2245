package models

import (
	"strings"
	"time"
)

// CWESeparator joins the unique CWE ids of a commit in tabular output.
const CWESeparator = "; "

// Level is a bandit severity or confidence value.
type Level string

const (
	LevelHigh    Level = "HIGH"
	LevelMedium  Level = "MEDIUM"
	LevelLow     Level = "LOW"
	LevelUnknown Level = "UNKNOWN"
)

// ParseLevel matches exactly; anything else is LevelUnknown.
func ParseLevel(v any) Level {
	s, ok := v.(string)
	if !ok {
		return LevelUnknown
	}
	switch Level(s) {
	case LevelHigh, LevelMedium, LevelLow:
		return Level(s)
	}
	return LevelUnknown
}

// Repository identifies one unit of analysis.
type Repository struct {
	Name string `json:"name" mapstructure:"name"`
	URL  string `json:"url" mapstructure:"url"` // Clone URL or local path.
}

// ScanJob is the body of an SQS message asking for one repository to be analyzed.
type ScanJob struct {
	JobID            string     `json:"job_id"`
	Repository       Repository `json:"repository"`
	Commits          int        `json:"commits"` // Zero uses the configured window.
	MessageCreatedAt time.Time  `json:"message_created_at"`
}

// CommitRecord is the normalized aggregate of one raw report.
type CommitRecord struct {
	Repository string
	Commit     string
	High       int
	Medium     int
	Low        int
	// Confidence tallies are kept for in-process statistics only.
	ConfHigh   int
	ConfMedium int
	ConfLow    int
	CWEs       []string // Sorted, unique.
}

// Total is the number of findings with a recognized severity.
func (r CommitRecord) Total() int {
	return r.High + r.Medium + r.Low
}

// CWEString renders the category set the way the summary files store it.
func (r CommitRecord) CWEString() string {
	return strings.Join(r.CWEs, CWESeparator)
}

// Summary is the ordered set of commit records for one repository.
type Summary struct {
	Repository string
	Records    []CommitRecord
}

// Combined concatenates the summaries of every configured repository.
type Combined struct {
	Records []CommitRecord
}

// ByRepository splits the combined records back into per-repository summaries,
// in order of first appearance.
func (c Combined) ByRepository() []Summary {
	index := make(map[string]int)
	var out []Summary
	for _, rec := range c.Records {
		i, ok := index[rec.Repository]
		if !ok {
			i = len(out)
			index[rec.Repository] = i
			out = append(out, Summary{Repository: rec.Repository})
		}
		out[i].Records = append(out[i].Records, rec)
	}
	return out
}
