// Package pipeline drives per-commit analysis and aggregates the raw reports
// into per-repository and combined summaries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lockwhz/secregress/internal/git"
	"github.com/lockwhz/secregress/internal/scan"
	"github.com/lockwhz/secregress/internal/store"
)

// ErrProvisioning marks failures that abort a whole run: unreachable
// repositories, unusable output locations.
var ErrProvisioning = errors.New("provisioning failed")

// Status is the outcome of one commit in a driver run.
type Status int

const (
	StatusAnalyzed Status = iota
	StatusSkipped
	StatusCheckoutFailed
	StatusAnalyzerFailed
	StatusStoreFailed
)

func (s Status) String() string {
	switch s {
	case StatusAnalyzed:
		return "analyzed"
	case StatusSkipped:
		return "skipped"
	case StatusCheckoutFailed:
		return "checkout_failed"
	case StatusAnalyzerFailed:
		return "analyzer_failed"
	case StatusStoreFailed:
		return "store_failed"
	}
	return "unknown"
}

// Failed reports whether the commit ended without a stored report.
func (s Status) Failed() bool {
	return s != StatusAnalyzed && s != StatusSkipped
}

type CommitResult struct {
	Commit   string
	Status   Status
	Err      error
	Duration time.Duration
}

// Driver ensures each commit of a repository has exactly one stored report.
type Driver struct {
	Git      git.Client
	Scanner  scan.Scanner
	Store    store.ArtifactStore
	TempDir  string // Staging area for analyzer output; os.TempDir when empty.
	Log      *zap.SugaredLogger
	Progress Progress
}

// Run processes commits strictly in order over the working tree at dir.
// Per-commit failures are recorded in the results and never stop the loop;
// only context cancellation does, returning the results gathered so far.
func (d *Driver) Run(ctx context.Context, repo, dir string, commits []string) ([]CommitResult, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	progress := d.Progress
	if progress == nil {
		progress = NoOpProgress{}
	}

	stage, err := os.MkdirTemp(d.TempDir, "secregress-"+repo+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: staging dir: %v", ErrProvisioning, err)
	}
	defer os.RemoveAll(stage)

	task := progress.StartTask(repo, len(commits))
	defer task.Complete()

	results := make([]CommitResult, 0, len(commits))
	for _, commit := range commits {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		task.Describe(repo + " " + git.ShortID(commit))

		res := d.runOne(ctx, repo, dir, stage, commit)
		results = append(results, res)
		task.Increment(1)

		switch {
		case res.Status == StatusSkipped:
			log.Debugw("report exists, skipping", "repo", repo, "commit", commit)
		case res.Status.Failed():
			log.Errorw("commit analysis failed", "repo", repo, "commit", git.ShortID(commit), "status", res.Status.String(), "error", res.Err)
		default:
			log.Infow("commit analyzed", "repo", repo, "commit", git.ShortID(commit), "duration", res.Duration.String())
		}
	}
	return results, nil
}

func (d *Driver) runOne(ctx context.Context, repo, dir, stage, commit string) CommitResult {
	start := time.Now()
	res := CommitResult{Commit: commit}
	done := func(s Status, err error) CommitResult {
		res.Status, res.Err, res.Duration = s, err, time.Since(start)
		return res
	}

	exists, err := d.Store.Exists(repo, commit)
	if err != nil {
		return done(StatusStoreFailed, err)
	}
	if exists {
		return done(StatusSkipped, nil)
	}

	if err := d.Git.Checkout(ctx, dir, commit); err != nil {
		return done(StatusCheckoutFailed, err)
	}

	reportPath := filepath.Join(stage, store.FileName(commit))
	defer os.Remove(reportPath)

	if err := d.Scanner.Run(ctx, dir, reportPath); err != nil {
		return done(StatusAnalyzerFailed, err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return done(StatusAnalyzerFailed, fmt.Errorf("%w: read report: %v", scan.ErrAnalyzer, err))
	}
	if err := d.Store.Put(repo, commit, data); err != nil {
		return done(StatusStoreFailed, err)
	}
	return done(StatusAnalyzed, nil)
}

// Tally counts results per status.
func Tally(results []CommitResult) map[Status]int {
	out := make(map[Status]int)
	for _, r := range results {
		out[r.Status]++
	}
	return out
}
