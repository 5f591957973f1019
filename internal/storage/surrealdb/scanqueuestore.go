package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const queueSelectFields = "id, job_key, payload, status, attempts, max_attempts, backoff_until, created_at, started_at, completed_at, error"

// ScanQueueStore implements interfaces.QueueStore using SurrealDB, admitting at
// most one non-terminal entry per job_key.
type ScanQueueStore struct {
	db *surrealdb.DB
	logger *common.Logger
}

// NewScanQueueStore creates a new ScanQueueStore.
func NewScanQueueStore(db *surrealdb.DB, logger *common.Logger) *ScanQueueStore {
	return &ScanQueueStore{db: db, logger: logger}
}

// Enqueue admits entry unless a non-terminal entry already exists for its
// job_key. The existence check and the insert run inside a single SurrealDB
// transaction so two concurrent Enqueue calls for the same job_key cannot
// both observe "no active entry" and both create one.
func (s *ScanQueueStore) Enqueue(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()[:12]
	}
	if entry.Status == "" {
		entry.Status = models.QueueStatusPending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.MaxAttempts == 0 {
		entry.MaxAttempts = 3
	}

	sql := `BEGIN TRANSACTION;
		LET $existing = (SELECT ` + queueSelectFields + ` FROM scan_queue WHERE job_key = $job_key AND status IN $active LIMIT 1);
		LET $admitted = IF array::len($existing) = 0 THEN
			(CREATE $rid SET
				job_key = $job_key, payload = $payload, status = $status, attempts = $attempts,
				max_attempts = $max_attempts, backoff_until = $backoff, created_at = $created_at,
				started_at = $started_at, completed_at = $completed_at, error = $error)
		ELSE
			$existing
		END;
		RETURN $admitted;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("scan_queue", entry.ID),
		"job_key": entry.JobKey,
		"active": models.NonTerminalQueueStatuses,
		"payload": entry.Payload,
		"status": entry.Status,
		"attempts": entry.Attempts,
		"max_attempts": entry.MaxAttempts,
		"backoff": entry.BackoffUntil,
		"created_at": entry.CreatedAt,
		"started_at": entry.StartedAt,
		"completed_at": entry.CompletedAt,
		"error": entry.Error,
	}

	results, err := surrealdb.Query[[]models.QueueEntry](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue entry: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("enqueue transaction returned no entry for job_key %q", entry.JobKey)
	}
	return &(*results)[0].Result[0], nil
}

func (s *ScanQueueStore) activeEntryForKey(ctx context.Context, jobKey string) (*models.QueueEntry, error) {
	sql := "SELECT " + queueSelectFields + " FROM scan_queue WHERE job_key = $key AND status IN $active ORDER BY created_at DESC LIMIT 1"
	vars := map[string]any{"key": jobKey, "active": models.NonTerminalQueueStatuses}

	results, err := surrealdb.Query[[]models.QueueEntry](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to check active entry: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *ScanQueueStore) HasActiveEntry(ctx context.Context, jobKey string) (bool, error) {
	entry, err := s.activeEntryForKey(ctx, jobKey)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

func (s *ScanQueueStore) Dequeue(ctx context.Context) (*models.QueueEntry, error) {
	now := time.Now()
	selectSQL := "SELECT " + queueSelectFields + " FROM scan_queue WHERE status = $pending AND (backoff_until = NONE OR backoff_until <= $now) ORDER BY created_at ASC LIMIT 1"
	vars := map[string]any{"pending": models.QueueStatusPending, "now": now}

	candidates, err := surrealdb.Query[[]models.QueueEntry](ctx, s.db, selectSQL, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidate entry: %w", err)
	}
	if candidates == nil || len(*candidates) == 0 || len((*candidates)[0].Result) == 0 {
		return nil, nil
	}
	candidate := (*candidates)[0].Result[0]

	// WHERE status = $pending makes this the atomic claim: if another worker
	// already dequeued candidate between the SELECT and here, this UPDATE
	// matches zero rows and RETURN yields an empty set, not the old row.
	updateSQL := `UPDATE $rid SET status = $running, started_at = $now, attempts = attempts + 1 WHERE status = $pending RETURN ` + queueSelectFields
	updateVars := map[string]any{
		"rid": surrealmodels.NewRecordID("scan_queue", candidate.ID),
		"running": models.QueueStatusRunning,
		"pending": models.QueueStatusPending,
		"now": now,
	}
	updated, err := surrealdb.Query[[]models.QueueEntry](ctx, s.db, updateSQL, updateVars)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue entry: %w", err)
	}
	if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
		return nil, nil // lost the claim race to another worker
	}
	claimed := (*updated)[0].Result[0]
	return &claimed, nil
}

func (s *ScanQueueStore) Complete(ctx context.Context, id string, entryErr error) error {
	now := time.Now()
	status := models.QueueStatusCompleted
	errStr := ""
	if entryErr != nil {
		status = models.QueueStatusFailed
		errStr = entryErr.Error()
	}

	sql := "UPDATE $rid SET status = $status, completed_at = $now, error = $error"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("scan_queue", id),
		"status": status,
		"now": now,
		"error": errStr,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to complete entry: %w", err)
	}
	return nil
}

func (s *ScanQueueStore) Retry(ctx context.Context, id string, backoff time.Duration) error {
	sql := `UPDATE $rid SET
		status = IF attempts >= max_attempts THEN $failed ELSE $pending END,
		backoff_until = $until`
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("scan_queue", id),
		"failed": models.QueueStatusFailed,
		"pending": models.QueueStatusPending,
		"until": time.Now().Add(backoff),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to retry entry: %w", err)
	}
	return nil
}

func (s *ScanQueueStore) Cancel(ctx context.Context, id string) error {
	sql := "UPDATE $rid SET status = $cancelled WHERE status = $pending"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("scan_queue", id),
		"cancelled": models.QueueStatusCancelled,
		"pending": models.QueueStatusPending,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to cancel entry: %w", err)
	}
	return nil
}

func (s *ScanQueueStore) ListPending(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	sql := "SELECT " + queueSelectFields + " FROM scan_queue WHERE status = $pending ORDER BY created_at ASC LIMIT $limit"
	vars := map[string]any{"pending": models.QueueStatusPending, "limit": limit}

	results, err := surrealdb.Query[[]models.QueueEntry](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	var entries []*models.QueueEntry
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			entries = append(entries, &(*results)[0].Result[i])
		}
	}
	return entries, nil
}

// ResetOrphanedRunning resets entries left "running" by a crashed worker back to
// pending, so the scheduler does not wait forever on a process that died mid-job.
func (s *ScanQueueStore) ResetOrphanedRunning(ctx context.Context) (int, error) {
	sql := "UPDATE scan_queue SET status = $pending, backoff_until = NONE WHERE status = $running RETURN " + queueSelectFields
	results, err := surrealdb.Query[[]models.QueueEntry](ctx, s.db, sql, map[string]any{
		"pending": models.QueueStatusPending,
		"running": models.QueueStatusRunning,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset orphaned entries: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

var _ interfaces.QueueStore = (*ScanQueueStore)(nil)
