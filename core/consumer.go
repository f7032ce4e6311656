package core

import (
	"context"
	"log"
)

// Consumer drains worker progress snapshots and writes them through the
// mirror, in the order they arrive: receive, overwrite, persist.
type Consumer struct {
	mirror    *Mirror
	progress  <-chan Job
	rankCache *RankCache
}

func NewConsumer(mirror *Mirror, progress <-chan Job, rankCache *RankCache) *Consumer {
	return &Consumer{mirror: mirror, progress: progress, rankCache: rankCache}
}

// Run applies snapshots until progress is closed or ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-c.progress:
			if !ok {
				return
			}
			// Logging-only failure: the in-memory mirror already reflects the
			// snapshot even if the write-through to storage failed, so judging
			// keeps making progress rather than blocking on a transient DB hiccup.
			if err := c.mirror.ApplySnapshot(ctx, job); err != nil {
				log.Printf("consumer: apply snapshot for job %d: %v", job.ID, err)
			}
			// A finished job can change its contest's ranklist and the global
			// one (contest id 0), so those cached entries no longer reflect reality.
			if job.State == StateFinished {
				c.rankCache.InvalidateContest(ctx, 0)
				if job.Submission.ContestID != 0 {
					c.rankCache.InvalidateContest(ctx, job.Submission.ContestID)
				}
			}
		}
	}
}
