package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/infra/storage"
)

var (
	// ErrNotInitialized is returned when the tracker is used before Load or
	// Initialize established a position.
	ErrNotInitialized = errors.New("cursor not initialized")

	// ErrRangeGap is returned when an advance does not start exactly one
	// block after the current position.
	ErrRangeGap = errors.New("scan range gap")
)

// Tracker owns the in-process cursor and the rules for moving it. The
// cursor is the last height whose batch was fully resolved; scans start at
// Height()+1. Exactly one goroutine advances a Tracker.
type Tracker struct {
	repo    storage.CheckpointRepository
	chainID uint64

	mu     sync.RWMutex
	height uint64
	ready  bool
}

func NewTracker(repo storage.CheckpointRepository, chainID uint64) *Tracker {
	return &Tracker{repo: repo, chainID: chainID}
}

// Load restores the persisted position. A fresh deployment returns
// storage.ErrCheckpointNotFound; the caller derives a start height and
// calls Initialize instead.
func (t *Tracker) Load(ctx context.Context) (uint64, error) {
	cp, err := t.repo.Get(ctx, t.chainID)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	t.height = cp.Height
	t.ready = true
	t.mu.Unlock()
	return cp.Height, nil
}

// Initialize writes the first checkpoint.
func (t *Tracker) Initialize(ctx context.Context, height uint64) error {
	err := t.repo.Save(ctx, &domain.Checkpoint{ChainID: t.chainID, Height: height})
	if err != nil {
		return fmt.Errorf("initialize cursor: %w", err)
	}
	t.mu.Lock()
	t.height = height
	t.ready = true
	t.mu.Unlock()
	return nil
}

// Advance moves the cursor past a fully resolved batch. The batch must
// start exactly one block after the current position; a batch that ends at
// or below the cursor was already covered and is a no-op (re-delivery of a
// replayed range is settled remotely by nonce, not here).
func (t *Tracker) Advance(ctx context.Context, fromHeight, toHeight uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return ErrNotInitialized
	}
	if toHeight < fromHeight {
		return fmt.Errorf("advance range [%d, %d] is inverted", fromHeight, toHeight)
	}
	if toHeight <= t.height {
		return nil
	}
	if fromHeight != t.height+1 {
		return fmt.Errorf("%w: expected start %d, got %d", ErrRangeGap, t.height+1, fromHeight)
	}

	err := t.repo.Save(ctx, &domain.Checkpoint{ChainID: t.chainID, Height: toHeight})
	if err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}
	t.height = toHeight
	return nil
}

// Height returns the current cursor position.
func (t *Tracker) Height() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height
}

// Ready reports whether a position has been established.
func (t *Tracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Lag returns how many blocks the cursor trails the given head. Negative
// only when a ledger restart made the head regress below the cursor.
func (t *Tracker) Lag(head uint64) int64 {
	return int64(head) - int64(t.Height())
}
