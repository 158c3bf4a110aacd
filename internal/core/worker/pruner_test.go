package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/infra/storage/memory"
)

func TestCheckInterval(t *testing.T) {
	tests := []struct {
		retention time.Duration
		want      time.Duration
	}{
		{retention: 5 * time.Minute, want: time.Minute},
		{retention: 30 * time.Minute, want: 3 * time.Minute},
		{retention: 24 * time.Hour, want: time.Hour},
		{retention: 30 * 24 * time.Hour, want: time.Hour},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, checkInterval(tt.retention), "retention %s", tt.retention)
	}
}

func TestPruneRemovesExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDeadLetterRepo(memory.NewMemoryStorage())

	now := time.Now().UTC()
	require.NoError(t, repo.Add(ctx, &domain.DeadLetter{
		ID: "old", ChainID: 1, CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.Add(ctx, &domain.DeadLetter{
		ID: "fresh", ChainID: 1, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, repo.Add(ctx, &domain.DeadLetter{
		ID: "other-chain", ChainID: 2, CreatedAt: now.Add(-48 * time.Hour),
	}))

	p := NewPruner(24*time.Hour, 1, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.prune(ctx)

	got, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "fresh", got[0].ID)

	// Another chain's entries are not this pruner's business.
	n, err := repo.Count(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	repo := memory.NewDeadLetterRepo(memory.NewMemoryStorage())
	p := NewPruner(0, 1, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return with retention disabled")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := memory.NewDeadLetterRepo(memory.NewMemoryStorage())
	p := NewPruner(time.Hour, 1, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
