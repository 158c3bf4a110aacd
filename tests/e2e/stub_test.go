package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segura08m/InnerNode/internal/core/config"
)

const (
	e2eChainID   = uint64(11155111)
	e2eContract  = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
	e2eSender    = "0x1111111111111111111111111111111111111111"
	e2eRecipient = "0x2222222222222222222222222222222222222222"
	e2eToken     = "0x3333333333333333333333333333333333333333"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ledgerStub answers the three JSON-RPC methods the watcher uses. Logs are
// returned only when the requested range covers their block, the same way
// a real node's eth_getLogs behaves.
type ledgerStub struct {
	srv *httptest.Server

	mu      sync.Mutex
	chainID uint64
	head    uint64
	logs    []map[string]any
}

func newLedgerStub(t *testing.T, chainID, head uint64) *ledgerStub {
	t.Helper()
	s := &ledgerStub{chainID: chainID, head: head}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *ledgerStub) addLog(l map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
}

func (s *ledgerStub) setHead(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = h
}

func (s *ledgerStub) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     any             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		resp["result"] = hexUint(s.chainID)
	case "eth_blockNumber":
		resp["result"] = hexUint(s.head)
	case "eth_getLogs":
		var filters []struct {
			FromBlock string `json:"fromBlock"`
			ToBlock   string `json:"toBlock"`
		}
		if err := json.Unmarshal(req.Params, &filters); err != nil || len(filters) != 1 {
			resp["error"] = map[string]any{"code": -32602, "message": "invalid filter"}
			break
		}
		from, to := parseHexUint(filters[0].FromBlock), parseHexUint(filters[0].ToBlock)
		out := []any{}
		for _, l := range s.logs {
			if bn := parseHexUint(l["blockNumber"].(string)); bn >= from && bn <= to {
				out = append(out, l)
			}
		}
		resp["result"] = out
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// bridgeLog builds an eth_getLogs entry in the BridgeTransferInitiated
// layout: indexed sender, recipient and destination chain, with token,
// amount and nonce packed into data.
func bridgeLog(selector string, block uint64, logIndex uint32, nonce, amount, destChainID uint64) map[string]any {
	return map[string]any{
		"address": e2eContract,
		"topics": []any{
			selector,
			addressTopic(e2eSender),
			addressTopic(e2eRecipient),
			"0x" + uintWord(destChainID),
		},
		"data":            "0x" + addressWord(e2eToken) + uintWord(amount) + uintWord(nonce),
		"blockNumber":     hexUint(block),
		"transactionHash": "0x" + strings.Repeat("ab", 32),
		"logIndex":        hexUint(uint64(logIndex)),
		"removed":         false,
	}
}

// attestationStub records every delivery the sink makes.
type attestationStub struct {
	srv *httptest.Server

	mu      sync.Mutex
	bodies  []map[string]any
	headers []http.Header
}

func newAttestationStub(t *testing.T) *attestationStub {
	t.Helper()
	s := &attestationStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.bodies = append(s.bodies, body)
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *attestationStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (s *attestationStub) body(i int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i]
}

func (s *attestationStub) header(i int) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[i]
}

// loadWatcherConfig goes through the real YAML loader so the test exercises
// the same path the binary runs at startup.
func loadWatcherConfig(t *testing.T, rpcURL, attestationURL string) *config.AppConfig {
	t.Helper()
	body := fmt.Sprintf(`
chain:
  rpc_url: %s
  chain_id: %d
  contract_address: "%s"
  confirmation_delay: 2
  start_height: 101
scanner:
  poll_interval: 25ms
attestation:
  url: %s
  api_key: e2e-key
  request_timeout: 2s
  retry:
    initial_delay: 10ms
    multiplier: 2.0
    max_attempts: 3
health:
  disabled: true
log:
  level: error
`, rpcURL, e2eChainID, e2eContract, attestationURL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func hexUint(n uint64) string { return fmt.Sprintf("0x%x", n) }

func uintWord(n uint64) string { return fmt.Sprintf("%064x", n) }

func addressTopic(addr string) string { return "0x" + addressWord(addr) }

func addressWord(addr string) string {
	return strings.Repeat("0", 24) + strings.TrimPrefix(addr, "0x")
}

func parseHexUint(s string) uint64 {
	n := new(big.Int)
	n.SetString(strings.TrimPrefix(s, "0x"), 16)
	return n.Uint64()
}
