// Package health provides the watcher's liveness and status endpoints.
package health

import (
	"context"
	"time"
)

// Status represents the health state of the watcher.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Report is the payload served on /health/detailed.
type Report struct {
	Status         Status    `json:"status"`
	State          string    `json:"state"`
	ChainID        uint64    `json:"chain_id"`
	CursorHeight   uint64    `json:"cursor_height"`
	HeadHeight     uint64    `json:"head_height"`
	BlockLag       int64     `json:"block_lag"`
	DeadLetters    int       `json:"dead_letters"`
	LedgerFailures int       `json:"consecutive_ledger_failures"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Source produces the live health report. Implemented by the orchestrator.
type Source interface {
	CheckHealth(ctx context.Context) Report
}
