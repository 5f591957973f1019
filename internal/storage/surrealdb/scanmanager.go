package surrealdb

import (
	"context"
	"fmt"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

// ScanManager owns the SurrealDB connection and every store the scan job
// orchestrator needs. It plays the role Manager plays for the market-data
// domain, but wires the FI-scan tables instead.
type ScanManager struct {
	db     *surrealdb.DB
	logger *common.Logger

	Checkpoints  *CheckpointStore
	Queue        *ScanQueueStore
	Jobs         *ScanJobStore
	Subscribers  *SubscriberStore
	Matches      *MatchStore
	Deliveries   *DeliveryStore
	Audit        *AuditStore
}

// NewScanManager connects to SurrealDB, ensures the scan tables exist, and
// wires up every store.
func NewScanManager(logger *common.Logger, config *common.Config) (*ScanManager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	tables := []string{
		"scan_job", "scan_queue", "scan_checkpoint", "subscriber",
		"scan_match", "scan_delivery", "scan_audit",
	}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	m := &ScanManager{
		db:          db,
		logger:      logger,
		Checkpoints: NewCheckpointStore(db, logger),
		Queue:       NewScanQueueStore(db, logger),
		Jobs:        NewScanJobStore(db, logger),
		Subscribers: NewSubscriberStore(db, logger),
		Matches:     NewMatchStore(db, logger),
		Deliveries:  NewDeliveryStore(db, logger),
		Audit:       NewAuditStore(db, logger),
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("scan manager storage initialized")

	return m, nil
}

func (m *ScanManager) Close() error {
	m.db.Close(context.Background())
	return nil
}
