package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/infra/storage"
)

// MemoryStorage backs the repositories when no database is configured.
// State is lost on restart; the scanner re-derives its position from the
// chain head on the next start.
type MemoryStorage struct {
	checkpoints map[uint64]*domain.Checkpoint
	deadLetters []*domain.DeadLetter
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		checkpoints: make(map[uint64]*domain.Checkpoint),
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Get(ctx context.Context, chainID uint64) (*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	cp, ok := r.store.checkpoints[chainID]
	if !ok {
		return nil, storage.ErrCheckpointNotFound
	}
	cloned := *cp
	return &cloned, nil
}

func (r *CheckpointRepo) Save(ctx context.Context, cp *domain.Checkpoint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if existing, ok := r.store.checkpoints[cp.ChainID]; ok && cp.Height < existing.Height {
		return fmt.Errorf("save %d below %d: %w",
			cp.Height, existing.Height, storage.ErrCheckpointRegressed)
	}
	cloned := *cp
	cloned.UpdatedAt = time.Now().UTC()
	r.store.checkpoints[cp.ChainID] = &cloned
	return nil
}

func (r *CheckpointRepo) Reset(ctx context.Context, chainID uint64, height uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.checkpoints[chainID] = &domain.Checkpoint{
		ChainID:   chainID,
		Height:    height,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// -----------------------------------------------------------------------------
// Dead Letter Repository
// -----------------------------------------------------------------------------

type DeadLetterRepo struct {
	store *MemoryStorage
}

func NewDeadLetterRepo(store *MemoryStorage) *DeadLetterRepo {
	return &DeadLetterRepo{store: store}
}

func (r *DeadLetterRepo) Add(ctx context.Context, dl *domain.DeadLetter) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cloned := *dl
	if cloned.CreatedAt.IsZero() {
		cloned.CreatedAt = time.Now().UTC()
	}
	r.store.deadLetters = append(r.store.deadLetters, &cloned)
	return nil
}

func (r *DeadLetterRepo) List(ctx context.Context, chainID uint64, limit int) ([]*domain.DeadLetter, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.DeadLetter
	for _, dl := range r.store.deadLetters {
		if dl.ChainID == chainID {
			cloned := *dl
			out = append(out, &cloned)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DeadLetterRepo) Count(ctx context.Context, chainID uint64) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := 0
	for _, dl := range r.store.deadLetters {
		if dl.ChainID == chainID {
			n++
		}
	}
	return n, nil
}

func (r *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, dl := range r.store.deadLetters {
		if dl.ID == id {
			r.store.deadLetters = append(r.store.deadLetters[:i], r.store.deadLetters[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *DeadLetterRepo) DeleteOlderThan(ctx context.Context, chainID uint64, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.deadLetters[:0]
	var removed int64
	for _, dl := range r.store.deadLetters {
		if dl.ChainID == chainID && dl.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, dl)
	}
	r.store.deadLetters = kept
	return removed, nil
}
