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

const deliverySelectFields = "id, job_id, subscriber_id, kind, status, match_count, error, sent_at"

// DeliveryStore implements interfaces.DeliveryStore using SurrealDB.
type DeliveryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewDeliveryStore creates a new DeliveryStore.
func NewDeliveryStore(db *surrealdb.DB, logger *common.Logger) *DeliveryStore {
	return &DeliveryStore{db: db, logger: logger}
}

func (s *DeliveryStore) Save(ctx context.Context, d *models.DeliveryAttempt) error {
	if d.ID == "" {
		d.ID = uuid.New().String()[:12]
	}
	sql := `UPSERT $rid SET
		job_id = $job_id, subscriber_id = $sub_id, kind = $kind, status = $status,
		match_count = $count, error = $error, sent_at = $sent_at`
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("scan_delivery", d.ID),
		"job_id": d.JobID,
		"sub_id": d.SubscriberID,
		"kind":   d.Kind,
		"status": d.Status,
		"count":  d.MatchCount,
		"error":  d.Error,
		"sent_at": d.SentAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save delivery attempt: %w", err)
	}
	return nil
}

func (s *DeliveryStore) ListByJob(ctx context.Context, jobID string) ([]*models.DeliveryAttempt, error) {
	sql := "SELECT " + deliverySelectFields + " FROM scan_delivery WHERE job_id = $job_id ORDER BY sent_at DESC"
	vars := map[string]any{"job_id": jobID}

	results, err := surrealdb.Query[[]models.DeliveryAttempt](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}
	var deliveries []*models.DeliveryAttempt
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			deliveries = append(deliveries, &(*results)[0].Result[i])
		}
	}
	return deliveries, nil
}

var _ interfaces.DeliveryStore = (*DeliveryStore)(nil)
