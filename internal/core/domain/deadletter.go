package domain

import "time"

type DeadLetterKind string

const (
	DeadLetterDecodeFailure DeadLetterKind = "decode_failure"
	DeadLetterRejected      DeadLetterKind = "attestation_rejected"
)

// DeadLetter is a log or record the watcher gave up on: a log that would
// not decode, or a record the attestation API rejected permanently. Kept
// for operator inspection; never retried automatically.
type DeadLetter struct {
	ID          string         `json:"id"`
	Kind        DeadLetterKind `json:"kind"`
	ChainID     uint64         `json:"chain_id"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint32         `json:"log_index"`
	Nonce       uint64         `json:"nonce,omitempty"`
	Reason      string         `json:"reason"`
	Payload     []byte         `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
