package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rentloop/internal/model"
)

type intentRepository struct {
	db *sqlx.DB
}

// NewIntentRepository creates the media upload intent log.
func NewIntentRepository(db *sqlx.DB) IntentRepository {
	return &intentRepository{db: db}
}

// Stage inserts one staged row per key before any object bytes are written.
func (r *intentRepository) Stage(ctx context.Context, batchID uuid.UUID, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	query := `
		INSERT INTO media_intents (key, batch_id, state)
		SELECT unnest($1::text[]), $2, $3
	`
	_, err := r.db.ExecContext(ctx, query, pq.Array(keys), batchID, model.IntentStaged)
	if err != nil {
		return fmt.Errorf("failed to stage upload intents: %w", err)
	}

	return nil
}

// Commit marks every intent in the batch committed.
func (r *intentRepository) Commit(ctx context.Context, batchID uuid.UUID) error {
	query := `UPDATE media_intents SET state = $1 WHERE batch_id = $2`
	_, err := r.db.ExecContext(ctx, query, model.IntentCommitted, batchID)
	if err != nil {
		return fmt.Errorf("failed to commit upload batch: %w", err)
	}
	return nil
}

// FindStaged returns staged intents created before the cutoff. Keys already
// referenced by a listing are excluded so a missed commit can never cause
// the sweeper to delete a live image.
func (r *intentRepository) FindStaged(ctx context.Context, olderThan time.Time, limit int) ([]model.UploadIntent, error) {
	query := `
		SELECT mi.key, mi.batch_id, mi.state, mi.created_at
		FROM media_intents mi
		WHERE mi.state = $1 AND mi.created_at < $2
		  AND NOT EXISTS (SELECT 1 FROM listings l WHERE mi.key = ANY(l.images))
		ORDER BY mi.created_at
		LIMIT $3
	`

	intents := []model.UploadIntent{}
	if err := r.db.SelectContext(ctx, &intents, query, model.IntentStaged, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to find staged intents: %w", err)
	}

	return intents, nil
}

// Remove deletes intent rows by key.
func (r *intentRepository) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	query := `DELETE FROM media_intents WHERE key = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(keys)); err != nil {
		return fmt.Errorf("failed to remove intents: %w", err)
	}

	return nil
}
