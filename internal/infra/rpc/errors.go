package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a JSON-RPC protocol error returned by the node.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPError is a non-2xx transport-level response.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter string
}

func (e *HTTPError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("http %d (retry after %s): %s", e.Status, e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// Codes that mean the request itself is malformed; retrying the same call
// cannot succeed.
// -32700 parse error, -32600 invalid request, -32601 method not found,
// -32602 invalid params.
func isFatalCode(code int) bool {
	switch code {
	case -32700, -32600, -32601, -32602:
		return true
	}
	return false
}

var throttleMarkers = []string{
	"rate limit",
	"too many requests",
	"quota",
	"plan limit",
	"count exceeded",
	"throttle",
}

// IsThrottled reports whether the node or its gateway is rate limiting us.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.Status == 429 || httpErr.Status == 403) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether a later identical call may succeed. Network
// failures, 5xx responses, and throttling all qualify; malformed-request
// protocol errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return !isFatalCode(rpcErr.Code)
	}
	return true
}
