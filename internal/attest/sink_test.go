package attest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segura08m/InnerNode/internal/core/config"
	"github.com/segura08m/InnerNode/internal/core/domain"
)

func testRecord() domain.EventRecord {
	return domain.EventRecord{
		FromAddress:        "0x1111111111111111111111111111111111111111",
		ToAddress:          "0x2222222222222222222222222222222222222222",
		Token:              "0x3333333333333333333333333333333333333333",
		Amount:             big.NewInt(1_000_000_000_000_000_000),
		Nonce:              42,
		SourceChainID:      11155111,
		DestinationChainID: 84532,
		TransactionHash:    "0x4444444444444444444444444444444444444444444444444444444444444444",
		BlockNumber:        102,
		LogIndex:           3,
	}
}

func sinkConfig(url string, maxAttempts int) config.AttestationConfig {
	return config.AttestationConfig{
		URL:            url,
		APIKey:         "secret-key",
		RequestTimeout: config.Duration(2 * time.Second),
		Retry: config.RetryConfig{
			InitialDelay: config.Duration(time.Millisecond),
			Multiplier:   2.0,
			MaxAttempts:  maxAttempts,
		},
	}
}

func newTestSink(url string, maxAttempts int) *HTTPSink {
	return NewHTTPSink(sinkConfig(url, maxAttempts), 11155111, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ==== Tests =================================================================

func TestDeliverSuccess(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody attestationPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := newTestSink(server.URL, 5).Deliver(context.Background(), testRecord())

	assert.Equal(t, domain.OutcomeDelivered, d.Outcome)
	assert.Equal(t, 1, d.Attempts)
	assert.NoError(t, d.Err)

	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", gotBody.From)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", gotBody.To)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", gotBody.Token)
	assert.Equal(t, "1000000000000000000", gotBody.Amount)
	assert.Equal(t, uint64(11155111), gotBody.SourceChainID)
	assert.Equal(t, uint64(84532), gotBody.DestinationChainID)
	assert.Equal(t, uint64(42), gotBody.Nonce)
	assert.Equal(t, uint64(102), gotBody.BlockNumber)
}

func TestDeliverRejected(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown token", http.StatusBadRequest)
	}))
	defer server.Close()

	d := newTestSink(server.URL, 5).Deliver(context.Background(), testRecord())

	// A refusal is final: no retry budget is spent on it.
	assert.Equal(t, domain.OutcomeRejectedPermanently, d.Outcome)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, int32(1), calls.Load())

	var rejected *RejectedError
	require.True(t, errors.As(d.Err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
	assert.Contains(t, rejected.Body, "unknown token")
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := newTestSink(server.URL, 5).Deliver(context.Background(), testRecord())

	assert.Equal(t, domain.OutcomeDelivered, d.Outcome)
	assert.Equal(t, 3, d.Attempts)
	assert.NoError(t, d.Err)
}

func TestDeliverExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	d := newTestSink(server.URL, 3).Deliver(context.Background(), testRecord())

	assert.Equal(t, domain.OutcomeRetryableFailure, d.Outcome)
	assert.Equal(t, 3, d.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	require.Error(t, d.Err)
	assert.Contains(t, d.Err.Error(), "status 500")
}

func TestDeliverSingleAttemptBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	d := newTestSink(server.URL, 1).Deliver(context.Background(), testRecord())

	assert.Equal(t, domain.OutcomeRetryableFailure, d.Outcome)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeliverTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	d := newTestSink(server.URL, 2).Deliver(context.Background(), testRecord())

	assert.Equal(t, domain.OutcomeRetryableFailure, d.Outcome)
	assert.Equal(t, 2, d.Attempts)
	require.Error(t, d.Err)
}

func TestDeliverCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := sinkConfig(server.URL, 5)
	cfg.Retry.InitialDelay = config.Duration(time.Second)
	sink := NewHTTPSink(cfg, 11155111, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	d := sink.Deliver(ctx, testRecord())

	// The cancel lands inside the first backoff sleep: one attempt was
	// made, no second one begins.
	assert.Equal(t, domain.OutcomeRetryableFailure, d.Outcome)
	assert.Equal(t, 1, d.Attempts)
	assert.ErrorIs(t, d.Err, context.Canceled)
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}
