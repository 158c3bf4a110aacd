package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/segura08m/InnerNode/internal/infra/chain"
)

// Caller is the JSON-RPC transport the client runs on.
type Caller interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

// Client implements chain.LedgerClient against an EVM JSON-RPC endpoint.
// Log filtering happens server-side: eth_getLogs is constrained to the
// bridge contract address and the event selector.
type Client struct {
	rpc      Caller
	contract string
	selector string
	log      *slog.Logger
}

func NewClient(rpc Caller, contractAddress, eventSelector string, log *slog.Logger) *Client {
	return &Client{
		rpc:      rpc,
		contract: strings.ToLower(contractAddress),
		selector: strings.ToLower(eventSelector),
		log:      log.With("component", "evm"),
	}
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	result, err := c.rpc.Call(ctx, "eth_chainId", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_chainId failed: %w", err)
	}
	idHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid chain id response")
	}
	return parseHexUint(idHex)
}

func (c *Client) HeadHeight(ctx context.Context) (uint64, error) {
	result, err := c.rpc.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	blockHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid block number response")
	}
	return parseHexUint(blockHex)
}

func (c *Client) FetchLogs(ctx context.Context, fromHeight, toHeight uint64) ([]chain.RawLog, error) {
	filter := map[string]any{
		"fromBlock": hexUint(fromHeight),
		"toBlock":   hexUint(toHeight),
		"address":   c.contract,
		"topics":    []any{c.selector},
	}

	result, err := c.rpc.Call(ctx, "eth_getLogs", []any{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs [%d, %d] failed: %w", fromHeight, toHeight, err)
	}
	rawList, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid logs response")
	}

	logs := make([]chain.RawLog, 0, len(rawList))
	for i, entry := range rawList {
		raw, ok := entry.(map[string]any)
		if !ok {
			c.log.Warn("skipping non-object log entry", "index", i)
			continue
		}
		logs = append(logs, parseLog(raw))
	}
	return logs, nil
}

func parseLog(raw map[string]any) chain.RawLog {
	var topics []string
	if rawTopics, ok := raw["topics"].([]any); ok {
		topics = make([]string, 0, len(rawTopics))
		for _, t := range rawTopics {
			topics = append(topics, strings.ToLower(getString(t)))
		}
	}

	blockNumber, _ := parseHexUint(getString(raw["blockNumber"]))
	logIndex, _ := parseHexUint(getString(raw["logIndex"]))
	removed, _ := raw["removed"].(bool)

	return chain.RawLog{
		Address:         strings.ToLower(getString(raw["address"])),
		Topics:          topics,
		Data:            strings.ToLower(getString(raw["data"])),
		BlockNumber:     blockNumber,
		TransactionHash: strings.ToLower(getString(raw["transactionHash"])),
		LogIndex:        uint32(logIndex),
		Removed:         removed,
	}
}

func hexUint(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

func parseHexUint(hexStr string) (uint64, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hexStr, "0x"), 16); !ok {
		return 0, fmt.Errorf("invalid hex: %s", hexStr)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex out of uint64 range: %s", hexStr)
	}
	return n.Uint64(), nil
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
