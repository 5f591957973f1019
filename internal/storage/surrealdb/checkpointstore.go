package surrealdb

import (
	"context"
	"fmt"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// CheckpointStore implements interfaces.CheckpointStore using SurrealDB.
// One record per job in the scan_checkpoint table, keyed by job_id.
type CheckpointStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(db *surrealdb.DB, logger *common.Logger) *CheckpointStore {
	return &CheckpointStore{db: db, logger: logger}
}

func (s *CheckpointStore) Load(ctx context.Context, jobID string) (models.Checkpoint, error) {
	sql := `SELECT last_processed_index, processed_count, matches_found, last_processed_key,
		last_processed_file, continuation_token, scan_start_ts, scan_end_ts, total_documents,
		is_resuming, triggered_by, all_match_details
		FROM $rid`
	vars := map[string]any{"rid": surrealmodels.NewRecordID("scan_checkpoint", jobID)}

	results, err := surrealdb.Query[[]models.Checkpoint](ctx, s.db, sql, vars)
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.Checkpoint{}, nil
	}
	return (*results)[0].Result[0], nil
}

func (s *CheckpointStore) Flush(ctx context.Context, jobID string, cp models.Checkpoint) error {
	sql := `UPSERT $rid SET
		last_processed_index = $idx, processed_count = $processed, matches_found = $matches,
		last_processed_key = $key, last_processed_file = $file, continuation_token = $token,
		scan_start_ts = $start, scan_end_ts = $end, total_documents = $total,
		is_resuming = $resuming, triggered_by = $by, all_match_details = $details`
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("scan_checkpoint", jobID),
		"idx":       cp.LastProcessedIndex,
		"processed": cp.ProcessedCount,
		"matches":   cp.MatchesFound,
		"key":       cp.LastProcessedKey,
		"file":      cp.LastProcessedFile,
		"token":     cp.ContinuationToken,
		"start":     cp.ScanStartTS,
		"end":       cp.ScanEndTS,
		"total":     cp.TotalDocuments,
		"resuming":  cp.IsResuming,
		"by":        cp.TriggeredBy,
		"details":   cp.AllMatchDetails,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) Clear(ctx context.Context, jobID string) error {
	sql := "DELETE $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("scan_checkpoint", jobID)}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

var _ interfaces.CheckpointStore = (*CheckpointStore)(nil)
