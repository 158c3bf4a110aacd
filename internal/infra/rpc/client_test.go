package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCallSuccess(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotMethod, _ = req["method"].(string)
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x10"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	result, err := client.Call(context.Background(), "eth_blockNumber", nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result != "0x10" {
		t.Errorf("result = %v, want 0x10", result)
	}
	if gotMethod != "eth_blockNumber" {
		t.Errorf("method sent = %q, want eth_blockNumber", gotMethod)
	}
}

func TestCallRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Call(context.Background(), "eth_bogus", nil)

	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *Error", err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("code = %d, want -32601", rpcErr.Code)
	}
	if IsRetryable(err) {
		t.Error("method-not-found must not be retryable")
	}
}

func TestCallRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Call(context.Background(), "eth_blockNumber", nil)
	if err == nil {
		t.Fatal("Call() = nil, want error")
	}
	if !IsThrottled(err) {
		t.Errorf("IsThrottled(%v) = false, want true", err)
	}
	if !IsRetryable(err) {
		t.Errorf("IsRetryable(%v) = false, want true", err)
	}
}

func TestCallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Call(context.Background(), "eth_blockNumber", nil)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Call() error = %v, want *HTTPError", err)
	}
	if httpErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", httpErr.Status)
	}
	if !IsRetryable(err) {
		t.Error("5xx must be retryable")
	}
}

func TestCallContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewClient(srv.URL, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Call(ctx, "eth_blockNumber", nil)
	if err == nil {
		t.Fatal("Call() = nil, want context error")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		throttled bool
	}{
		{"nil", nil, false, false},
		{"plain network error", errors.New("dial tcp: connection refused"), true, false},
		{"quota message", errors.New("daily request quota exceeded"), true, true},
		{"rate limit message", errors.New("Rate Limit reached"), true, true},
		{"parse error code", &Error{Code: -32700, Message: "parse error"}, false, false},
		{"invalid params code", &Error{Code: -32602, Message: "invalid params"}, false, false},
		{"node internal error code", &Error{Code: -32000, Message: "header not found"}, true, false},
		{"http 403", &HTTPError{Status: 403}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsThrottled(tt.err); got != tt.throttled {
				t.Errorf("IsThrottled() = %v, want %v", got, tt.throttled)
			}
		})
	}
}
