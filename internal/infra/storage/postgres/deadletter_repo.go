package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/segura08m/InnerNode/internal/core/domain"
)

// DeadLetterRepo persists dead letters in the dead_letters table.
type DeadLetterRepo struct {
	db *sqlx.DB
}

func NewDeadLetterRepo(pg *PostgresDB) *DeadLetterRepo {
	return &DeadLetterRepo{db: pg.DB}
}

type deadLetterRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	ChainID     uint64    `db:"chain_id"`
	BlockNumber uint64    `db:"block_number"`
	TxHash      string    `db:"tx_hash"`
	LogIndex    uint32    `db:"log_index"`
	Nonce       uint64    `db:"nonce"`
	Reason      string    `db:"reason"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row deadLetterRow) toDomain() *domain.DeadLetter {
	return &domain.DeadLetter{
		ID:          row.ID,
		Kind:        domain.DeadLetterKind(row.Kind),
		ChainID:     row.ChainID,
		BlockNumber: row.BlockNumber,
		TxHash:      row.TxHash,
		LogIndex:    row.LogIndex,
		Nonce:       row.Nonce,
		Reason:      row.Reason,
		Payload:     row.Payload,
		CreatedAt:   row.CreatedAt,
	}
}

func (r *DeadLetterRepo) Add(ctx context.Context, dl *domain.DeadLetter) error {
	createdAt := dl.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dead_letters
			(id, kind, chain_id, block_number, tx_hash, log_index, nonce, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		dl.ID, string(dl.Kind), dl.ChainID, dl.BlockNumber, dl.TxHash,
		dl.LogIndex, dl.Nonce, dl.Reason, dl.Payload, createdAt)
	if err != nil {
		return fmt.Errorf("add dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) List(ctx context.Context, chainID uint64, limit int) ([]*domain.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []deadLetterRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, kind, chain_id, block_number, tx_hash, log_index, nonce, reason, payload, created_at
		FROM dead_letters
		WHERE chain_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, chainID, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	out := make([]*domain.DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *DeadLetterRepo) Count(ctx context.Context, chainID uint64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM dead_letters WHERE chain_id = $1`, chainID)
	if err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

func (r *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) DeleteOlderThan(ctx context.Context, chainID uint64, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM dead_letters WHERE chain_id = $1 AND created_at < $2`,
		chainID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}
	return removed, nil
}
