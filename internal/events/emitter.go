package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/segura08m/InnerNode/internal/core/domain"
)

// Config holds outcome emitter settings. An empty URL selects the log-only
// emitter.
type Config struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// OutcomeEvent is published once per record after its delivery settles.
type OutcomeEvent struct {
	Type        string                 `json:"type"`
	ChainID     uint64                 `json:"chain_id"`
	Nonce       uint64                 `json:"nonce"`
	TxHash      string                 `json:"tx_hash"`
	BlockNumber uint64                 `json:"block_number"`
	Outcome     domain.DeliveryOutcome `json:"outcome"`
	Attempts    int                    `json:"attempts"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Emitter publishes delivery outcomes for downstream reconciliation.
// Emission is advisory: a failed emit is logged by the caller and never
// holds the cursor back.
type Emitter interface {
	EmitOutcome(ctx context.Context, rec domain.EventRecord, d domain.Delivery) error
	Close() error
}

// LogEmitter writes outcomes to the process log. Default when no broker is
// configured.
type LogEmitter struct {
	Log *slog.Logger
}

func (e *LogEmitter) EmitOutcome(ctx context.Context, rec domain.EventRecord, d domain.Delivery) error {
	e.Log.InfoContext(ctx, "delivery outcome",
		"outcome", d.Outcome,
		"nonce", rec.Nonce,
		"tx", rec.TransactionHash,
		"block", rec.BlockNumber,
		"attempts", d.Attempts,
	)
	return nil
}

func (e *LogEmitter) Close() error { return nil }
