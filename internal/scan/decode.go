package scan

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/infra/chain"
)

// DecodeError describes one log that could not be turned into an
// EventRecord. The scanner skips the log, records it, and carries on; a
// single bad log must never stall the pipeline.
type DecodeError struct {
	BlockNumber uint64
	TxHash      string
	LogIndex    uint32
	Reason      string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s:%d (block %d): %s",
		e.TxHash, e.LogIndex, e.BlockNumber, e.Reason)
}

// Decoder turns raw BridgeTransferInitiated logs into EventRecords.
//
// Expected layout:
//
//	topics[0] = event selector
//	topics[1] = sender address
//	topics[2] = recipient address
//	topics[3] = destination chain id
//	data      = token address | amount | nonce (three 32-byte words)
type Decoder struct {
	selector      string
	sourceChainID uint64
}

func NewDecoder(selector string, sourceChainID uint64) *Decoder {
	return &Decoder{
		selector:      strings.ToLower(selector),
		sourceChainID: sourceChainID,
	}
}

func (d *Decoder) Decode(log chain.RawLog) (domain.EventRecord, error) {
	fail := func(format string, args ...any) (domain.EventRecord, error) {
		return domain.EventRecord{}, &DecodeError{
			BlockNumber: log.BlockNumber,
			TxHash:      log.TransactionHash,
			LogIndex:    log.LogIndex,
			Reason:      fmt.Sprintf(format, args...),
		}
	}

	if len(log.Topics) != 4 {
		return fail("expected 4 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != d.selector {
		return fail("unexpected selector %s", log.Topics[0])
	}

	sender, err := topicAddress(log.Topics[1])
	if err != nil {
		return fail("sender topic: %v", err)
	}
	recipient, err := topicAddress(log.Topics[2])
	if err != nil {
		return fail("recipient topic: %v", err)
	}
	destChain, err := topicUint(log.Topics[3])
	if err != nil {
		return fail("destination chain topic: %v", err)
	}

	data := strings.TrimPrefix(log.Data, "0x")
	if len(data) != 3*wordHexLen {
		return fail("expected 3 data words (%d hex chars), got %d", 3*wordHexLen, len(data))
	}
	token, err := wordAddress(data[0:wordHexLen])
	if err != nil {
		return fail("token word: %v", err)
	}
	amount, err := wordBig(data[wordHexLen : 2*wordHexLen])
	if err != nil {
		return fail("amount word: %v", err)
	}
	nonce, err := wordUint(data[2*wordHexLen : 3*wordHexLen])
	if err != nil {
		return fail("nonce word: %v", err)
	}

	rec := domain.EventRecord{
		FromAddress:        sender,
		ToAddress:          recipient,
		Token:              token,
		Amount:             amount,
		Nonce:              nonce,
		SourceChainID:      d.sourceChainID,
		DestinationChainID: destChain,
		TransactionHash:    log.TransactionHash,
		BlockNumber:        log.BlockNumber,
		LogIndex:           log.LogIndex,
	}
	if err := rec.Validate(); err != nil {
		return fail("invalid record: %v", err)
	}
	return rec, nil
}

const wordHexLen = 64 // one 32-byte word as hex

// topicAddress extracts an address from a 32-byte topic.
func topicAddress(topic string) (string, error) {
	return wordAddress(strings.TrimPrefix(topic, "0x"))
}

// topicUint extracts a uint64 from a 32-byte topic.
func topicUint(topic string) (uint64, error) {
	return wordUint(strings.TrimPrefix(topic, "0x"))
}

// wordAddress decodes a left-padded address word. Nonzero padding means the
// value was never an address.
func wordAddress(word string) (string, error) {
	if len(word) != wordHexLen {
		return "", fmt.Errorf("word is %d hex chars, want %d", len(word), wordHexLen)
	}
	if !isHex(word) {
		return "", fmt.Errorf("invalid hex in address word")
	}
	if strings.Trim(word[:24], "0") != "" {
		return "", fmt.Errorf("nonzero padding in address word")
	}
	return "0x" + strings.ToLower(word[24:]), nil
}

func wordBig(word string) (*big.Int, error) {
	if len(word) != wordHexLen {
		return nil, fmt.Errorf("word is %d hex chars, want %d", len(word), wordHexLen)
	}
	n, ok := new(big.Int).SetString(word, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex word")
	}
	return n, nil
}

func wordUint(word string) (uint64, error) {
	n, err := wordBig(word)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("value out of uint64 range")
	}
	return n.Uint64(), nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
