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

const subscriberSelectFields = "id, email, name, subscribed_types, filters, active, last_email_ts, email_count"

// SubscriberStore implements interfaces.SubscriberStore using SurrealDB.
type SubscriberStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSubscriberStore creates a new SubscriberStore.
func NewSubscriberStore(db *surrealdb.DB, logger *common.Logger) *SubscriberStore {
	return &SubscriberStore{db: db, logger: logger}
}

func (s *SubscriberStore) List(ctx context.Context) ([]*models.Subscriber, error) {
	sql := "SELECT " + subscriberSelectFields + " FROM subscriber WHERE active = true ORDER BY email ASC"
	results, err := surrealdb.Query[[]models.Subscriber](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	var subs []*models.Subscriber
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			subs = append(subs, &(*results)[0].Result[i])
		}
	}
	return subs, nil
}

func (s *SubscriberStore) Get(ctx context.Context, id string) (*models.Subscriber, error) {
	sql := "SELECT " + subscriberSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("subscriber", id)}

	results, err := surrealdb.Query[[]models.Subscriber](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	sub := (*results)[0].Result[0]
	return &sub, nil
}

func (s *SubscriberStore) Save(ctx context.Context, sub *models.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()[:8]
	}

	sql := `UPSERT $rid SET
		email = $email, name = $name, subscribed_types = $types, filters = $filters,
		active = $active, last_email_ts = $last_email, email_count = $count`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("subscriber", sub.ID),
		"email":      sub.Email,
		"name":       sub.Name,
		"types":      sub.SubscribedTypes,
		"filters":    sub.Filters,
		"active":     sub.Active,
		"last_email": sub.LastEmailTS,
		"count":      sub.EmailCount,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	return nil
}

var _ interfaces.SubscriberStore = (*SubscriberStore)(nil)
