package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/infra/storage"
)

// CheckpointRepo persists scanner positions in the checkpoints table.
type CheckpointRepo struct {
	db *sqlx.DB
}

func NewCheckpointRepo(pg *PostgresDB) *CheckpointRepo {
	return &CheckpointRepo{db: pg.DB}
}

type checkpointRow struct {
	ChainID   uint64    `db:"chain_id"`
	Height    uint64    `db:"height"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *CheckpointRepo) Get(ctx context.Context, chainID uint64) (*domain.Checkpoint, error) {
	var row checkpointRow
	err := r.db.GetContext(ctx, &row,
		`SELECT chain_id, height, updated_at FROM checkpoints WHERE chain_id = $1`, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return &domain.Checkpoint{
		ChainID:   row.ChainID,
		Height:    row.Height,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Save upserts the checkpoint. The WHERE clause makes the monotonic rule a
// database guarantee, not just an application one.
func (r *CheckpointRepo) Save(ctx context.Context, cp *domain.Checkpoint) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (chain_id, height, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_id) DO UPDATE
		SET height = EXCLUDED.height, updated_at = now()
		WHERE checkpoints.height <= EXCLUDED.height`,
		cp.ChainID, cp.Height)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("save %d for chain %d: %w",
			cp.Height, cp.ChainID, storage.ErrCheckpointRegressed)
	}
	return nil
}

func (r *CheckpointRepo) Reset(ctx context.Context, chainID uint64, height uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (chain_id, height, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_id) DO UPDATE
		SET height = EXCLUDED.height, updated_at = now()`,
		chainID, height)
	if err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}
