package surrealdb

import (
	"context"
	"fmt"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const matchSelectFields = "id, job_id, object_key, project_id, file_name, fi_type, validation_quote, confidence, stage, extracted_at"

// MatchStore implements interfaces.MatchStore using SurrealDB.
type MatchStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewMatchStore creates a new MatchStore.
func NewMatchStore(db *surrealdb.DB, logger *common.Logger) *MatchStore {
	return &MatchStore{db: db, logger: logger}
}

func (s *MatchStore) Save(ctx context.Context, m *models.MatchRecord) error {
	id := uuid.New().String()[:12]
	sql := `UPSERT $rid SET
		job_id = $job_id, object_key = $key, project_id = $project, file_name = $file,
		fi_type = $fi_type, validation_quote = $quote, confidence = $confidence,
		stage = $stage, extracted_at = $ts`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("scan_match", id),
		"job_id":     m.JobID,
		"key":        m.ObjectKey,
		"project":    m.ProjectID,
		"file":       m.FileName,
		"fi_type":    m.FIType,
		"quote":      m.ValidationQuote,
		"confidence": m.Confidence,
		"stage":      m.Stage,
		"ts":         m.ExtractedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save match record: %w", err)
	}
	return nil
}

func (s *MatchStore) ListByJob(ctx context.Context, jobID string) ([]*models.MatchRecord, error) {
	sql := "SELECT " + matchSelectFields + " FROM scan_match WHERE job_id = $job_id ORDER BY extracted_at DESC"
	vars := map[string]any{"job_id": jobID}

	results, err := surrealdb.Query[[]models.MatchRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list match records: %w", err)
	}
	var matches []*models.MatchRecord
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			matches = append(matches, &(*results)[0].Result[i])
		}
	}
	return matches, nil
}

var _ interfaces.MatchStore = (*MatchStore)(nil)
