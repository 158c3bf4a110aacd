package scan

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segura08m/InnerNode/internal/infra/chain"
)

const (
	testSenderAddr    = "0x" + "11" + "11111111111111111111111111111111111111"
	testRecipientAddr = "0x2222222222222222222222222222222222222222"
	testTokenAddr     = "0x3333333333333333333333333333333333333333"
	testTxHash        = "0x4444444444444444444444444444444444444444444444444444444444444444"
)

func uintWord(n uint64) string {
	return fmt.Sprintf("%064x", n)
}

func bigWord(n *big.Int) string {
	return fmt.Sprintf("%064x", n)
}

func addressWord(addr string) string {
	return strings.Repeat("0", 24) + strings.TrimPrefix(addr, "0x")
}

func testSel() string {
	return EventSelector("BridgeTransferInitiated(address,address,uint256,address,uint256,uint256)")
}

func validLog() chain.RawLog {
	amount := big.NewInt(1_000_000_000_000_000_000) // 1e18
	return chain.RawLog{
		Address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Topics: []string{
			testSel(),
			"0x" + addressWord(testSenderAddr),
			"0x" + addressWord(testRecipientAddr),
			"0x" + uintWord(84532),
		},
		Data:            "0x" + addressWord(testTokenAddr) + bigWord(amount) + uintWord(42),
		BlockNumber:     102,
		TransactionHash: testTxHash,
		LogIndex:        3,
	}
}

func TestEventSelector(t *testing.T) {
	// keccak256 of the canonical ERC20 Transfer signature is a fixed,
	// universally known value; it pins the hash implementation.
	got := EventSelector("Transfer(address,address,uint256)")
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", got)
}

func TestDecodeValid(t *testing.T) {
	dec := NewDecoder(testSel(), 11155111)

	rec, err := dec.Decode(validLog())
	require.NoError(t, err)

	assert.Equal(t, testSenderAddr, rec.FromAddress)
	assert.Equal(t, testRecipientAddr, rec.ToAddress)
	assert.Equal(t, testTokenAddr, rec.Token)
	assert.Equal(t, "1000000000000000000", rec.Amount.String())
	assert.Equal(t, uint64(42), rec.Nonce)
	assert.Equal(t, uint64(11155111), rec.SourceChainID)
	assert.Equal(t, uint64(84532), rec.DestinationChainID)
	assert.Equal(t, testTxHash, rec.TransactionHash)
	assert.Equal(t, uint64(102), rec.BlockNumber)
	assert.Equal(t, uint32(3), rec.LogIndex)
}

func TestDecodeSelectorCaseInsensitive(t *testing.T) {
	dec := NewDecoder(strings.ToUpper(testSel()), 11155111)
	_, err := dec.Decode(validLog())
	require.NoError(t, err)
}

func TestDecodeZeroAmount(t *testing.T) {
	dec := NewDecoder(testSel(), 11155111)
	log := validLog()
	log.Data = "0x" + addressWord(testTokenAddr) + uintWord(0) + uintWord(42)

	rec, err := dec.Decode(log)
	require.NoError(t, err)
	assert.Zero(t, rec.Amount.Sign())
}

func TestDecodeErrors(t *testing.T) {
	overflow := bigWord(new(big.Int).Lsh(big.NewInt(1), 64)) // 2^64

	tests := []struct {
		name   string
		mutate func(*chain.RawLog)
		reason string
	}{
		{
			name:   "anonymous event",
			mutate: func(l *chain.RawLog) { l.Topics = l.Topics[1:] },
			reason: "expected 4 topics",
		},
		{
			name:   "foreign selector",
			mutate: func(l *chain.RawLog) { l.Topics[0] = "0x" + strings.Repeat("ef", 32) },
			reason: "unexpected selector",
		},
		{
			name:   "dirty sender padding",
			mutate: func(l *chain.RawLog) { l.Topics[1] = "0x" + strings.Repeat("ff", 32) },
			reason: "sender topic",
		},
		{
			name:   "destination chain overflow",
			mutate: func(l *chain.RawLog) { l.Topics[3] = "0x" + overflow },
			reason: "destination chain topic",
		},
		{
			name:   "truncated data",
			mutate: func(l *chain.RawLog) { l.Data = "0x" + addressWord(testTokenAddr) },
			reason: "expected 3 data words",
		},
		{
			name: "nonce overflow",
			mutate: func(l *chain.RawLog) {
				l.Data = "0x" + addressWord(testTokenAddr) + uintWord(1) + overflow
			},
			reason: "nonce word",
		},
		{
			name: "garbage hex in token",
			mutate: func(l *chain.RawLog) {
				l.Data = "0x" + strings.Repeat("zz", 32) + uintWord(1) + uintWord(42)
			},
			reason: "token word",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(testSel(), 11155111)
			log := validLog()
			tt.mutate(&log)

			_, err := dec.Decode(log)
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "error is %T, want *DecodeError", err)
			assert.Contains(t, decodeErr.Reason, tt.reason)
			assert.Equal(t, log.BlockNumber, decodeErr.BlockNumber)
			assert.Equal(t, log.TransactionHash, decodeErr.TxHash)
		})
	}
}
