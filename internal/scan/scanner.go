package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/segura08m/InnerNode/internal/core/cursor"
	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/infra/chain"
	"github.com/segura08m/InnerNode/internal/infra/storage"
	"github.com/segura08m/InnerNode/internal/metrics"
)

// Config bounds one scanner.
type Config struct {
	ChainID       uint64
	Confirmations uint64
	MaxRangeSize  uint64
}

// Scanner discovers bridge events in the safe region of the chain. It
// never writes the cursor: the caller advances it once a batch is fully
// resolved, which keeps re-scans of a failed range automatic.
type Scanner struct {
	ledger      chain.LedgerClient
	tracker     *cursor.Tracker
	decoder     *Decoder
	deadLetters storage.DeadLetterRepository
	cfg         Config
	chainLabel  string
	log         *slog.Logger
}

func New(
	ledger chain.LedgerClient,
	tracker *cursor.Tracker,
	decoder *Decoder,
	deadLetters storage.DeadLetterRepository,
	cfg Config,
	log *slog.Logger,
) *Scanner {
	return &Scanner{
		ledger:      ledger,
		tracker:     tracker,
		decoder:     decoder,
		deadLetters: deadLetters,
		cfg:         cfg,
		chainLabel:  strconv.FormatUint(cfg.ChainID, 10),
		log:         log.With("component", "scanner"),
	}
}

// Scan performs one pass: fetch head, derive the safe window, pull and
// decode logs. A nil batch with nil error means there is nothing safe to
// scan yet. Errors are ledger failures; the cursor is untouched either way.
func (s *Scanner) Scan(ctx context.Context) (*domain.Batch, error) {
	start := time.Now()

	head, err := s.ledger.HeadHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}

	// The chain is younger than the confirmation delay; nothing is final.
	if head < s.cfg.Confirmations {
		return nil, nil
	}
	safe := head - s.cfg.Confirmations
	metrics.SafeHeight.WithLabelValues(s.chainLabel).Set(float64(safe))

	cursorHeight := s.tracker.Height()
	from := cursorHeight + 1
	if safe < from {
		// Also covers a ledger restarted onto shorter history: we idle
		// until it catches back up rather than ever stepping backwards.
		s.log.Debug("no safe blocks to scan", "cursor", cursorHeight, "safe", safe, "head", head)
		return nil, nil
	}

	to := safe
	if capped := cursorHeight + s.cfg.MaxRangeSize; to > capped {
		to = capped
	}

	rawLogs, err := s.ledger.FetchLogs(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch logs [%d, %d]: %w", from, to, err)
	}

	records := make([]domain.EventRecord, 0, len(rawLogs))
	for _, lg := range rawLogs {
		if lg.Removed {
			// Reorged out inside the confirmation window. The replacement
			// log, if any, will appear in a later scan.
			s.log.Warn("skipping removed log", "block", lg.BlockNumber, "tx", lg.TransactionHash)
			continue
		}
		rec, err := s.decoder.Decode(lg)
		if err != nil {
			s.log.Error("failed to decode log",
				"block", lg.BlockNumber,
				"tx", lg.TransactionHash,
				"logIndex", lg.LogIndex,
				"error", err,
			)
			metrics.DecodeFailures.WithLabelValues(s.chainLabel).Inc()
			s.recordDecodeFailure(ctx, lg, err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].BlockNumber != records[j].BlockNumber {
			return records[i].BlockNumber < records[j].BlockNumber
		}
		return records[i].LogIndex < records[j].LogIndex
	})

	metrics.BlocksScanned.WithLabelValues(s.chainLabel).Add(float64(to - from + 1))
	metrics.EventsDecoded.WithLabelValues(s.chainLabel).Add(float64(len(records)))
	metrics.ScanDuration.WithLabelValues(s.chainLabel).Observe(time.Since(start).Seconds())

	s.log.Debug("scan complete",
		"from", from, "to", to, "head", head, "records", len(records))

	return &domain.Batch{FromHeight: from, ToHeight: to, Records: records}, nil
}

func (s *Scanner) recordDecodeFailure(ctx context.Context, lg chain.RawLog, decodeErr error) {
	payload, _ := json.Marshal(lg)
	dl := &domain.DeadLetter{
		ID:          uuid.New().String(),
		Kind:        domain.DeadLetterDecodeFailure,
		ChainID:     s.cfg.ChainID,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TransactionHash,
		LogIndex:    lg.LogIndex,
		Reason:      decodeErr.Error(),
		Payload:     payload,
	}
	if err := s.deadLetters.Add(ctx, dl); err != nil {
		s.log.Warn("failed to record dead letter", "error", err)
	}
}
