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

// AuditStore implements interfaces.AuditStore using SurrealDB. Only written to
// when a job's EnableAudit flag is set.
type AuditStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *surrealdb.DB, logger *common.Logger) *AuditStore {
	return &AuditStore{db: db, logger: logger}
}

func (s *AuditStore) Save(ctx context.Context, item *models.DailyRunItem) error {
	id := uuid.New().String()[:12]
	sql := `UPSERT $rid SET
		job_id = $job_id, run_date = $run_date, object_key = $key, outcome = $outcome,
		fi_type = $fi_type, processed_at = $ts`
	vars := map[string]any{
		"rid":      surrealmodels.NewRecordID("scan_audit", id),
		"job_id":   item.JobID,
		"run_date": item.RunDate,
		"key":      item.ObjectKey,
		"outcome":  item.Outcome,
		"fi_type":  item.FIType,
		"ts":       item.ProcessedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save audit item: %w", err)
	}
	return nil
}

var _ interfaces.AuditStore = (*AuditStore)(nil)
