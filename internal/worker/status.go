package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/karlennis/fiscan/internal/models"
)

// JobStatus is the operator-facing read-path summary of one ScanJob's
// current state, the "get_status" result operators check instead of
// re-reading their inbox.
type JobStatus struct {
	JobID string
	Status string
	LastError string
	Checkpoint models.Checkpoint
	Statistics models.ScanStatistics
}

// GetStatus returns jobID's current status, checkpoint, and lifetime
// statistics.
func (g *Governor) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := g.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, nil
	}
	return &JobStatus{
		JobID: job.JobID,
		Status: job.Status,
		LastError: job.LastError,
		Checkpoint: job.Checkpoint,
		Statistics: job.Statistics,
	}, nil
}

// GetRecentRuns returns jobID's most recent run-summary delivery attempts,
// newest first, capped at limit (defaults to 10).
func (g *Governor) GetRecentRuns(ctx context.Context, jobID string, limit int) ([]*models.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 10
	}
	if g.deliveries == nil {
		return nil, nil
	}

	all, err := g.deliveries.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts for job %s: %w", jobID, err)
	}

	var summaries []*models.DeliveryAttempt
	for _, d := range all {
		if d.Kind == "summary" {
			summaries = append(summaries, d)
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].SentAt.After(summaries[j].SentAt) })
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}
