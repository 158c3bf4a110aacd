package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/segura08m/InnerNode/internal/core/domain"
)

// NATSEmitter publishes outcomes to <prefix>.outcomes.<outcome>, so a
// reconciler can subscribe to rejections alone without filtering the
// delivered stream.
type NATSEmitter struct {
	conn          *nats.Conn
	subjectPrefix string
}

func NewNATSEmitter(cfg Config) (*NATSEmitter, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("innernode-watcher"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "innernode"
	}
	return &NATSEmitter{conn: conn, subjectPrefix: prefix}, nil
}

func (e *NATSEmitter) EmitOutcome(ctx context.Context, rec domain.EventRecord, d domain.Delivery) error {
	event := OutcomeEvent{
		Type:        "bridge_transfer_outcome",
		ChainID:     rec.SourceChainID,
		Nonce:       rec.Nonce,
		TxHash:      rec.TransactionHash,
		BlockNumber: rec.BlockNumber,
		Outcome:     d.Outcome,
		Attempts:    d.Attempts,
		Timestamp:   time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}
	subject := fmt.Sprintf("%s.outcomes.%s", e.subjectPrefix, d.Outcome)
	if err := e.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// Close drains buffered publishes before closing the connection.
func (e *NATSEmitter) Close() error {
	if err := e.conn.Drain(); err != nil {
		e.conn.Close()
		return err
	}
	return nil
}
