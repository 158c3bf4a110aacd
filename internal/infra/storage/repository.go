package storage

import (
	"context"
	"errors"
	"time"

	"github.com/segura08m/InnerNode/internal/core/domain"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint has been saved
	// for a chain yet (fresh deployment).
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointRegressed is returned when a save would move the
	// checkpoint to a lower height. The cursor only moves forward; explicit
	// operator resets go through Reset.
	ErrCheckpointRegressed = errors.New("checkpoint height regressed")
)

// CheckpointRepository persists the scanner's position.
type CheckpointRepository interface {
	// Get retrieves the checkpoint for a chain.
	Get(ctx context.Context, chainID uint64) (*domain.Checkpoint, error)

	// Save upserts the checkpoint, enforcing monotonic height.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Reset overwrites the checkpoint unconditionally, including to a
	// lower height. Operator tool; the watcher itself never calls it.
	Reset(ctx context.Context, chainID uint64, height uint64) error
}

// DeadLetterRepository stores logs and records the watcher gave up on.
type DeadLetterRepository interface {
	// Add appends a dead letter.
	Add(ctx context.Context, dl *domain.DeadLetter) error

	// List returns up to limit dead letters for a chain, newest first.
	List(ctx context.Context, chainID uint64, limit int) ([]*domain.DeadLetter, error)

	// Count returns the number of stored dead letters for a chain.
	Count(ctx context.Context, chainID uint64) (int, error)

	// Delete removes a dead letter by ID.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan removes dead letters created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, chainID uint64, cutoff time.Time) (int64, error)
}
