// Package audit persists a trail of authorization mutations.
package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder writes records into authz_audit_logs.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists one audit entry.
func (r *Recorder) Record(ctx context.Context, action, entity, entityID string, meta map[string]any) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if action == "" || entity == "" || entityID == "" {
		return errors.New("audit: action, entity and entity_id are required")
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO authz_audit_logs (id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.New(), action, entity, entityID, metaJSON)
	return err
}
