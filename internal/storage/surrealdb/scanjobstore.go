package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
	"github.com/karlennis/fiscan/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const scanJobSelectFields = "job_id as id, document_type, status, config, schedule, checkpoint, statistics, customers, last_error, created_at, updated_at"

// ScanJobStore implements interfaces.ScanJobStore using SurrealDB.
type ScanJobStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewScanJobStore creates a new ScanJobStore.
func NewScanJobStore(db *surrealdb.DB, logger *common.Logger) *ScanJobStore {
	return &ScanJobStore{db: db, logger: logger}
}

func (s *ScanJobStore) Get(ctx context.Context, jobID string) (*models.ScanJob, error) {
	sql := "SELECT " + scanJobSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("scan_job", jobID)}

	results, err := surrealdb.Query[[]models.ScanJob](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	job := (*results)[0].Result[0]
	return &job, nil
}

func (s *ScanJobStore) Save(ctx context.Context, job *models.ScanJob) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	sql := `UPSERT $rid SET
		job_id = $job_id, document_type = $doc_type, status = $status, config = $config,
		schedule = $schedule, checkpoint = $checkpoint, statistics = $statistics,
		customers = $customers, last_error = $last_error, created_at = $created_at,
		updated_at = $updated_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("scan_job", job.JobID),
		"job_id":     job.JobID,
		"doc_type":   job.DocumentType,
		"status":     job.Status,
		"config":     job.Config,
		"schedule":   job.Schedule,
		"checkpoint": job.Checkpoint,
		"statistics": job.Statistics,
		"customers":  job.Customers,
		"last_error": job.LastError,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save scan job: %w", err)
	}
	return nil
}

func (s *ScanJobStore) List(ctx context.Context) ([]*models.ScanJob, error) {
	sql := "SELECT " + scanJobSelectFields + " FROM scan_job ORDER BY job_id ASC"
	results, err := surrealdb.Query[[]models.ScanJob](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan jobs: %w", err)
	}
	var jobs []*models.ScanJob
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			jobs = append(jobs, &(*results)[0].Result[i])
		}
	}
	return jobs, nil
}

func (s *ScanJobStore) Delete(ctx context.Context, jobID string) error {
	sql := "DELETE $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("scan_job", jobID)}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to delete scan job: %w", err)
	}
	return nil
}

var _ interfaces.ScanJobStore = (*ScanJobStore)(nil)
