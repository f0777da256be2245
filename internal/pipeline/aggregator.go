package pipeline

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/lockwhz/secregress/internal/logger"
	"github.com/lockwhz/secregress/internal/report"
	"github.com/lockwhz/secregress/internal/store"
	"github.com/lockwhz/secregress/models"
)

// Aggregator rebuilds a repository summary from every stored raw report.
type Aggregator struct {
	Store store.ArtifactStore
	Log   *zap.SugaredLogger
	// Chronological sorts records oldest-first by their position in the
	// history listing instead of keeping discovery order.
	Chronological bool
}

// Aggregate parses each discovered report into one record. Reports that
// cannot be read or are not JSON are skipped: a failed commit is absent
// from the summary, never a zero row. history is the most-recent-first
// listing used for chronological ordering and may be nil.
func (a *Aggregator) Aggregate(repo string, history []string) (models.Summary, error) {
	defer logger.TraceAuto()()

	log := a.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	commits, err := a.Store.List(repo)
	if err != nil {
		return models.Summary{}, fmt.Errorf("discover reports for %s: %w", repo, err)
	}

	out := models.Summary{Repository: repo, Records: make([]models.CommitRecord, 0, len(commits))}
	for _, commit := range commits {
		data, err := a.Store.Get(repo, commit)
		if err != nil {
			log.Warnw("skipping unreadable report", "repo", repo, "commit", commit, "error", err)
			continue
		}
		rec, err := report.Parse(repo, commit, data)
		if err != nil {
			log.Warnw("skipping malformed report", "repo", repo, "commit", commit, "error", err)
			continue
		}
		out.Records = append(out.Records, rec)
	}

	if a.Chronological && len(history) > 0 {
		SortChronological(out.Records, history)
	}
	return out, nil
}

// SortChronological orders records oldest-first by position in history
// (most-recent-first). Records whose commit is not in history keep their
// relative order after the known ones.
func SortChronological(records []models.CommitRecord, history []string) {
	rank := make(map[string]int, len(history))
	for i, c := range history {
		if _, dup := rank[c]; !dup {
			rank[c] = len(history) - 1 - i
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		ri, okI := rank[records[i].Commit]
		rj, okJ := rank[records[j].Commit]
		switch {
		case okI && okJ:
			return ri < rj
		case okI:
			return true
		default:
			return false
		}
	})
}
