package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/segura08m/InnerNode/internal/core/config"
	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/metrics"
)

// Sink accepts decoded transfer records for attestation on the
// destination side.
type Sink interface {
	// Deliver pushes one record and reports how it resolved. Outcome is
	// always set; Err carries the final error unless the record was
	// delivered.
	Deliver(ctx context.Context, rec domain.EventRecord) domain.Delivery
}

// RejectedError is a definitive refusal from the attestation API (4xx).
// Retrying cannot change the answer; the caller dead-letters the record
// and moves on.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("attestation rejected (status %d): %s", e.Status, e.Body)
}

// attestationPayload mirrors the oracle's ingest schema. Amount travels
// as a decimal string so 256-bit values survive JSON number handling.
type attestationPayload struct {
	From               string `json:"from"`
	To                 string `json:"to"`
	Token              string `json:"token"`
	Amount             string `json:"amount"`
	SourceChainID      uint64 `json:"sourceChainId"`
	DestinationChainID uint64 `json:"destinationChainId"`
	Nonce              uint64 `json:"nonce"`
	TransactionHash    string `json:"transactionHash"`
	BlockNumber        uint64 `json:"blockNumber"`
}

func buildPayload(rec domain.EventRecord) attestationPayload {
	return attestationPayload{
		From:               rec.FromAddress,
		To:                 rec.ToAddress,
		Token:              rec.Token,
		Amount:             decimal.NewFromBigInt(rec.Amount, 0).String(),
		SourceChainID:      rec.SourceChainID,
		DestinationChainID: rec.DestinationChainID,
		Nonce:              rec.Nonce,
		TransactionHash:    rec.TransactionHash,
		BlockNumber:        rec.BlockNumber,
	}
}

// HTTPSink posts records to the attestation API, retrying transient
// failures in place with exponential backoff. The API dedups by nonce, so
// a re-delivered record is acknowledged exactly like a fresh one.
type HTTPSink struct {
	cfg        config.AttestationConfig
	httpClient *http.Client
	chainLabel string
	log        *slog.Logger
}

func NewHTTPSink(cfg config.AttestationConfig, sourceChainID uint64, log *slog.Logger) *HTTPSink {
	return &HTTPSink{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout.Std()},
		chainLabel: strconv.FormatUint(sourceChainID, 10),
		log:        log.With("component", "attestation_sink"),
	}
}

// Deliver posts the record once, then retries 5xx and transport failures
// with exponential backoff until the attempt budget runs out or the
// context is canceled. A 4xx stops immediately: the API has seen the
// record and refused it.
func (s *HTTPSink) Deliver(ctx context.Context, rec domain.EventRecord) domain.Delivery {
	start := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		err := s.post(ctx, rec)
		if err == nil {
			return nil
		}
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.Retry.InitialDelay.Std()
	bo.Multiplier = s.cfg.Retry.Multiplier
	bo.MaxElapsedTime = 0 // bounded by attempts, not wall clock

	var maxRetries uint64
	if s.cfg.Retry.MaxAttempts > 1 {
		maxRetries = uint64(s.cfg.Retry.MaxAttempts - 1)
	}

	notify := func(err error, next time.Duration) {
		metrics.AttestationRetries.WithLabelValues(s.chainLabel).Inc()
		s.log.Warn("retrying attestation",
			"nonce", rec.Nonce,
			"tx", rec.TransactionHash,
			"attempt", attempts,
			"next", next,
			"error", err,
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx), notify)

	metrics.DeliveryDuration.WithLabelValues(s.chainLabel).Observe(time.Since(start).Seconds())

	outcome := classify(err)
	metrics.Attestations.WithLabelValues(s.chainLabel, string(outcome)).Inc()

	return domain.Delivery{Outcome: outcome, Attempts: attempts, Err: err}
}

func classify(err error) domain.DeliveryOutcome {
	if err == nil {
		return domain.OutcomeDelivered
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return domain.OutcomeRejectedPermanently
	}
	return domain.OutcomeRetryableFailure
}

func (s *HTTPSink) post(ctx context.Context, rec domain.EventRecord) error {
	body, err := json.Marshal(buildPayload(rec))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post attestation: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RejectedError{Status: resp.StatusCode, Body: readSnippet(resp.Body)}
	default:
		return fmt.Errorf("attestation API status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return string(b)
}
