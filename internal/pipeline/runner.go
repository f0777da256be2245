package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lockwhz/secregress/config"
	"github.com/lockwhz/secregress/internal/git"
	"github.com/lockwhz/secregress/internal/logger"
	"github.com/lockwhz/secregress/internal/scan"
	"github.com/lockwhz/secregress/internal/store"
	"github.com/lockwhz/secregress/internal/summary"
	"github.com/lockwhz/secregress/models"
)

// SummarySink receives every recomputed repository summary.
type SummarySink interface {
	SaveSummary(ctx context.Context, runID uuid.UUID, s models.Summary) error
}

// RepositoryRun is the outcome of one repository.
type RepositoryRun struct {
	Summary models.Summary
	Results []CommitResult
}

// Runner is the pipeline entry point. All settings come from Config; two
// runners with different configurations can coexist in one process.
// A Runner must not be copied after first use.
type Runner struct {
	Config   config.Config
	Git      git.Client
	Scanner  scan.Scanner
	Store    store.ArtifactStore
	Sink     SummarySink // Optional.
	Progress Progress
	Log      *zap.SugaredLogger

	treesMu sync.Mutex
	trees   map[string]*sync.Mutex // working tree dir -> lock.
}

// lockTree serializes every run that checks out or reads the working tree
// at dir and returns the unlock function.
func (r *Runner) lockTree(dir string) func() {
	r.treesMu.Lock()
	if r.trees == nil {
		r.trees = make(map[string]*sync.Mutex)
	}
	mu, ok := r.trees[dir]
	if !ok {
		mu = &sync.Mutex{}
		r.trees[dir] = mu
	}
	r.treesMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (r *Runner) log() *zap.SugaredLogger {
	if r.Log == nil {
		return zap.NewNop().Sugar()
	}
	return r.Log
}

// Run analyzes every configured repository, writes the per-repository
// summaries and then the combined summary. Repositories run one at a time
// unless ParallelRepos allows more; each has its own working tree.
func (r *Runner) Run(ctx context.Context) (models.Combined, error) {
	start := time.Now()
	defer logger.Trace("Runner.Run", start)

	if err := os.MkdirAll(r.Config.OutputDir, 0o755); err != nil {
		return models.Combined{}, fmt.Errorf("%w: output dir: %v", ErrProvisioning, err)
	}

	runID := uuid.New()
	summaries := make([]models.Summary, len(r.Config.Repositories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.Config.ParallelRepos))
	for i, repo := range r.Config.Repositories {
		g.Go(func() error {
			run, err := r.runRepository(gctx, runID, repo, r.Config.Commits, r.log())
			if err != nil {
				return fmt.Errorf("%s: %w", repo.Name, err)
			}
			summaries[i] = run.Summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Combined{}, err
	}

	return r.writeCombined(summaries)
}

// RunRepository analyzes and aggregates a single repository.
func (r *Runner) RunRepository(ctx context.Context, repo models.Repository) (RepositoryRun, error) {
	if err := os.MkdirAll(r.Config.OutputDir, 0o755); err != nil {
		return RepositoryRun{}, fmt.Errorf("%w: output dir: %v", ErrProvisioning, err)
	}
	return r.runRepository(ctx, uuid.New(), repo, r.Config.Commits, r.log())
}

// RunJob runs one queued job. A positive job.Commits overrides the configured
// history window for this job only. Jobs for the same repository run one
// after the other.
func (r *Runner) RunJob(ctx context.Context, job models.ScanJob) (RepositoryRun, error) {
	if err := os.MkdirAll(r.Config.OutputDir, 0o755); err != nil {
		return RepositoryRun{}, fmt.Errorf("%w: output dir: %v", ErrProvisioning, err)
	}
	window := r.Config.Commits
	if job.Commits > 0 {
		window = job.Commits
	}
	return r.runRepository(ctx, uuid.New(), job.Repository, window, r.log().With("job_id", job.JobID))
}

func (r *Runner) runRepository(ctx context.Context, runID uuid.UUID, repo models.Repository, window int, log *zap.SugaredLogger) (RepositoryRun, error) {
	log = log.With("repo", repo.Name, "run_id", runID.String())

	if err := config.ValidateRepository(repo); err != nil {
		return RepositoryRun{}, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	dir := r.Config.RepoDir(repo.Name)
	unlock := r.lockTree(dir)
	defer unlock()

	if r.Config.Clone {
		if err := r.Git.Clone(ctx, repo, dir); err != nil {
			return RepositoryRun{}, fmt.Errorf("%w: %v", ErrProvisioning, err)
		}
	}

	original, err := r.Git.Head(dir)
	if err != nil {
		return RepositoryRun{}, fmt.Errorf("%w: open working tree %s: %v", ErrProvisioning, dir, err)
	}
	commits, err := r.Git.ListCommits(ctx, dir, r.Config.Ref, window)
	if err != nil {
		return RepositoryRun{}, fmt.Errorf("%w: list commits: %v", ErrProvisioning, err)
	}
	log.Infow("analyzing history", "commits", len(commits))

	driver := &Driver{
		Git:      r.Git,
		Scanner:  r.Scanner,
		Store:    r.Store,
		TempDir:  os.TempDir(),
		Log:      log,
		Progress: r.Progress,
	}
	results, runErr := driver.Run(ctx, repo.Name, dir, commits)

	// Leave the tree where we found it so the next listing starts from the
	// same place.
	if err := r.Git.Checkout(context.WithoutCancel(ctx), dir, original); err != nil {
		log.Warnw("could not restore working tree", "rev", original, "error", err)
	}
	if runErr != nil {
		return RepositoryRun{}, runErr
	}

	tally := Tally(results)
	log.Infow("history analyzed",
		"analyzed", tally[StatusAnalyzed],
		"skipped", tally[StatusSkipped],
		"checkout_failed", tally[StatusCheckoutFailed],
		"analyzer_failed", tally[StatusAnalyzerFailed],
		"store_failed", tally[StatusStoreFailed],
	)

	s, err := r.summarize(ctx, runID, repo.Name, commits, log)
	if err != nil {
		return RepositoryRun{}, err
	}
	return RepositoryRun{Summary: s, Results: results}, nil
}

// Aggregate rebuilds every summary from stored reports without running the
// analyzer. Chronological ordering uses the working tree's history when it
// is available.
func (r *Runner) Aggregate(ctx context.Context) (models.Combined, error) {
	if err := os.MkdirAll(r.Config.OutputDir, 0o755); err != nil {
		return models.Combined{}, fmt.Errorf("%w: output dir: %v", ErrProvisioning, err)
	}

	runID := uuid.New()
	summaries := make([]models.Summary, 0, len(r.Config.Repositories))
	for _, repo := range r.Config.Repositories {
		if err := ctx.Err(); err != nil {
			return models.Combined{}, err
		}
		s, err := r.aggregateRepository(ctx, runID, repo)
		if err != nil {
			return models.Combined{}, err
		}
		summaries = append(summaries, s)
	}
	return r.writeCombined(summaries)
}

func (r *Runner) aggregateRepository(ctx context.Context, runID uuid.UUID, repo models.Repository) (models.Summary, error) {
	dir := r.Config.RepoDir(repo.Name)
	unlock := r.lockTree(dir)
	defer unlock()

	var history []string
	if r.Config.Chronological && r.Git != nil {
		h, err := r.Git.ListCommits(ctx, dir, r.Config.Ref, r.Config.Commits)
		if err != nil {
			r.log().Warnw("history unavailable, keeping discovery order", "repo", repo.Name, "error", err)
		}
		history = h
	}
	return r.summarize(ctx, runID, repo.Name, history, r.log().With("repo", repo.Name))
}

func (r *Runner) summarize(ctx context.Context, runID uuid.UUID, repo string, history []string, log *zap.SugaredLogger) (models.Summary, error) {
	agg := &Aggregator{Store: r.Store, Log: log, Chronological: r.Config.Chronological}
	s, err := agg.Aggregate(repo, history)
	if err != nil {
		return models.Summary{}, err
	}

	path := r.Config.SummaryPath(repo)
	if err := summary.WriteFile(path, s.Records); err != nil {
		return models.Summary{}, fmt.Errorf("write summary: %w", err)
	}
	log.Infow("summary written", "records", len(s.Records), "path", path)

	if r.Sink != nil {
		if err := r.Sink.SaveSummary(ctx, runID, s); err != nil {
			return models.Summary{}, fmt.Errorf("save summary: %w", err)
		}
	}
	return s, nil
}

func (r *Runner) writeCombined(summaries []models.Summary) (models.Combined, error) {
	combined := Combine(summaries...)
	path := r.Config.CombinedPath()
	if err := summary.WriteFile(path, combined.Records); err != nil {
		return models.Combined{}, fmt.Errorf("write combined summary: %w", err)
	}
	r.log().Infow("combined summary written", "records", len(combined.Records), "path", path)
	return combined, nil
}
