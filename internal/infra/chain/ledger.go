package chain

import "context"

// RawLog is one contract log exactly as the ledger reports it, before any
// decoding. Topics and data are 0x-prefixed hex strings.
type RawLog struct {
	Address         string
	Topics          []string
	Data            string
	BlockNumber     uint64
	TransactionHash string
	LogIndex        uint32
	Removed         bool
}

// LedgerClient is the read-side boundary between the scanner and a concrete
// chain. All methods are reads; implementations never mutate chain state.
type LedgerClient interface {
	// ChainID returns the chain identifier the endpoint reports.
	ChainID(ctx context.Context) (uint64, error)

	// HeadHeight returns the highest block number the ledger currently knows.
	HeadHeight(ctx context.Context) (uint64, error)

	// FetchLogs returns the watched contract's logs carrying the configured
	// event selector in [fromHeight, toHeight], both bounds inclusive.
	FetchLogs(ctx context.Context, fromHeight, toHeight uint64) ([]RawLog, error)
}
