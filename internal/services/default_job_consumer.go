package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultJobConsumer processes deliveries with a fixed number of workers.
// Each worker runs one repository at a time in its own working tree.
type DefaultJobConsumer struct {
	Runner  JobRunner
	Workers int
	Log     *zap.SugaredLogger
}

// Start blocks until jobs is closed and every in-flight job is done.
func (c *DefaultJobConsumer) Start(ctx context.Context, jobs <-chan *Delivery) {
	log := c.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				log.Debugf("[Consumer Worker %d] processing job %s", workerID, d.Job.JobID)
				if err := ProcessJob(ctx, d, c.Runner, log); err != nil {
					log.Errorf("[Consumer Worker %d] job %s failed: %v", workerID, d.Job.JobID, err)
				} else {
					log.Debugf("[Consumer Worker %d] job %s finished", workerID, d.Job.JobID)
				}
			}
		}(i)
	}
	wg.Wait()
}
