package domain

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
)

// EventRecord is one normalized bridge transfer, decoded from a
// BridgeTransferInitiated log. Records are immutable once produced by the
// scanner; Nonce is the remote idempotency key.
type EventRecord struct {
	FromAddress        string   `json:"from_address"`
	ToAddress          string   `json:"to_address"`
	Token              string   `json:"token"`
	Amount             *big.Int `json:"amount"`
	Nonce              uint64   `json:"nonce"`
	SourceChainID      uint64   `json:"source_chain_id"`
	DestinationChainID uint64   `json:"destination_chain_id"`
	TransactionHash    string   `json:"transaction_hash"`
	BlockNumber        uint64   `json:"block_number"`
	LogIndex           uint32   `json:"log_index"`
}

// Key identifies a record within its source chain. Two scans of the same
// range produce records with identical keys.
func (r EventRecord) Key() string {
	return fmt.Sprintf("%s:%d", r.TransactionHash, r.LogIndex)
}

// Validate checks field shape after decoding. Addresses and hashes must be
// lowercase 0x-prefixed hex; amounts are non-negative and fit in 256 bits.
func (r EventRecord) Validate() error {
	if !addressPattern.MatchString(r.FromAddress) {
		return fmt.Errorf("from address %q: %w", r.FromAddress, ErrMalformedAddress)
	}
	if !addressPattern.MatchString(r.ToAddress) {
		return fmt.Errorf("to address %q: %w", r.ToAddress, ErrMalformedAddress)
	}
	if !addressPattern.MatchString(r.Token) {
		return fmt.Errorf("token address %q: %w", r.Token, ErrMalformedAddress)
	}
	if r.Amount == nil || r.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if r.Amount.BitLen() > 256 {
		return fmt.Errorf("amount exceeds 256 bits: %w", ErrInvalidAmount)
	}
	if !txHashPattern.MatchString(r.TransactionHash) {
		return fmt.Errorf("transaction hash %q: %w", r.TransactionHash, ErrMalformedHash)
	}
	if r.SourceChainID == 0 {
		return errors.New("source chain id must be positive")
	}
	if r.DestinationChainID == 0 {
		return errors.New("destination chain id must be positive")
	}
	if r.BlockNumber == 0 {
		return errors.New("block number must be positive")
	}
	return nil
}

var (
	ErrMalformedAddress = errors.New("malformed address")
	ErrMalformedHash    = errors.New("malformed hash")
	ErrInvalidAmount    = errors.New("invalid amount")
)
