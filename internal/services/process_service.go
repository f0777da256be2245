package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lockwhz/secregress/internal/pipeline"
	"github.com/lockwhz/secregress/models"
)

// JobRunner analyzes the repository named by a job.
type JobRunner interface {
	RunJob(ctx context.Context, job models.ScanJob) (pipeline.RepositoryRun, error)
}

// ProcessJob runs one delivery and acknowledges it on success. A failed
// job stays on the queue and is redelivered after its visibility timeout;
// per-commit failures are not job failures.
func ProcessJob(ctx context.Context, d *Delivery, runner JobRunner, log *zap.SugaredLogger) error {
	start := time.Now()
	log.Debugf("ProcessService: starting job %s for %s", d.Job.JobID, d.Job.Repository.Name)

	run, err := runner.RunJob(ctx, d.Job)
	if err != nil {
		return fmt.Errorf("ProcessService: run %s: %w", d.Job.Repository.Name, err)
	}

	failed := 0
	for _, res := range run.Results {
		if res.Status.Failed() {
			failed++
		}
	}
	log.Infow("job finished",
		"job_id", d.Job.JobID,
		"repo", d.Job.Repository.Name,
		"records", len(run.Summary.Records),
		"failed_commits", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if d.Ack != nil {
		if err := d.Ack(ctx); err != nil {
			return fmt.Errorf("ProcessService: ack job %s: %w", d.Job.JobID, err)
		}
	}
	return nil
}
