package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/segura08m/InnerNode/internal/attest"
	"github.com/segura08m/InnerNode/internal/core/config"
	"github.com/segura08m/InnerNode/internal/core/cursor"
	"github.com/segura08m/InnerNode/internal/core/domain"
	"github.com/segura08m/InnerNode/internal/core/worker"
	"github.com/segura08m/InnerNode/internal/events"
	"github.com/segura08m/InnerNode/internal/health"
	"github.com/segura08m/InnerNode/internal/infra/chain"
	"github.com/segura08m/InnerNode/internal/infra/chain/evm"
	"github.com/segura08m/InnerNode/internal/infra/rpc"
	"github.com/segura08m/InnerNode/internal/infra/storage"
	"github.com/segura08m/InnerNode/internal/infra/storage/memory"
	"github.com/segura08m/InnerNode/internal/infra/storage/postgres"
	"github.com/segura08m/InnerNode/internal/infra/storage/redisstore"
	"github.com/segura08m/InnerNode/internal/metrics"
	"github.com/segura08m/InnerNode/internal/scan"
)

const (
	rpcTimeout     = 10 * time.Second
	stopDeadline   = 15 * time.Second
	healthCacheTTL = 10 * time.Second
)

// Orchestrator wires the scanner, the attestation sink and storage
// together and owns the watcher lifecycle. There is exactly one scan loop
// per process; nothing else writes the cursor.
type Orchestrator struct {
	cfg config.AppConfig
	log *slog.Logger

	ledger      chain.LedgerClient
	scanner     *scan.Scanner
	sink        attest.Sink
	tracker     *cursor.Tracker
	emitter     events.Emitter
	checkpoints storage.CheckpointRepository
	deadLetters storage.DeadLetterRepository
	pruner      *worker.Pruner
	healthSrv   *health.Server

	rpcClient *rpc.Client
	db        *postgres.PostgresDB
	redis     *redisstore.Client

	mu             sync.Mutex
	state          State
	ledgerFailures int
	lastReport     health.Report
	lastCheck      time.Time
	cancel         context.CancelFunc
	started        bool

	done       chan struct{}
	chainLabel string
}

// New builds a fully wired orchestrator from validated configuration.
// Anything that fails here is a configuration or environment problem; the
// process should exit without entering the scan loop.
func New(cfg config.AppConfig, log *slog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:        cfg,
		log:        log.With("component", "orchestrator"),
		state:      StateStarting,
		done:       make(chan struct{}),
		chainLabel: strconv.FormatUint(cfg.Chain.ChainID, 10),
	}

	// 1. Storage: Postgres when configured, process memory otherwise.
	if cfg.Database.URL != "" {
		db, err := postgres.NewPostgresDB(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		o.db = db
		o.checkpoints = postgres.NewCheckpointRepo(db)
		o.deadLetters = postgres.NewDeadLetterRepo(db)
		log.Info("using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		o.checkpoints = memory.NewCheckpointRepo(store)
		o.deadLetters = memory.NewDeadLetterRepo(store)
		log.Info("using in-memory storage; the cursor resets on restart")
	}

	// 2. Redis, when configured, holds dead letters with a TTL so they
	// cannot grow unbounded.
	if cfg.Redis.URL != "" {
		redisClient, err := redisstore.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, keeping dead letters in primary storage", "error", err)
		} else {
			o.redis = redisClient
			o.deadLetters = redisstore.NewDeadLetterRepo(redisClient)
			log.Info("dead letters stored in Redis")
		}
	}

	// 3. Ledger client.
	o.rpcClient = rpc.NewClient(cfg.Chain.RPCURL, rpcTimeout)
	selector := scan.EventSelector(cfg.Chain.EventSignature)
	o.ledger = evm.NewClient(o.rpcClient, cfg.Chain.ContractAddress, selector, log)

	// 4. Scan pipeline and sink.
	o.tracker = cursor.NewTracker(o.checkpoints, cfg.Chain.ChainID)
	decoder := scan.NewDecoder(selector, cfg.Chain.ChainID)
	o.scanner = scan.New(o.ledger, o.tracker, decoder, o.deadLetters, scan.Config{
		ChainID:       cfg.Chain.ChainID,
		Confirmations: cfg.Chain.Confirmations(),
		MaxRangeSize:  cfg.Scanner.MaxRangeSize,
	}, log)
	o.sink = attest.NewHTTPSink(cfg.Attestation, cfg.Chain.ChainID, log)

	// 5. Outcome emitter.
	if cfg.NATS.URL != "" {
		emitter, err := events.NewNATSEmitter(cfg.NATS)
		if err != nil {
			o.closeStorage()
			return nil, fmt.Errorf("connect NATS: %w", err)
		}
		o.emitter = emitter
		log.Info("publishing outcomes to NATS", "subject_prefix", cfg.NATS.SubjectPrefix)
	} else {
		o.emitter = &events.LogEmitter{Log: log}
	}

	// 6. Dead letter retention.
	if retention := cfg.Retention.DeadLetters.Std(); retention > 0 {
		o.pruner = worker.NewPruner(retention, cfg.Chain.ChainID, o.deadLetters, log)
	}

	// 7. Health and metrics listener.
	if !cfg.Health.Disabled {
		o.healthSrv = health.NewServer(o, cfg.Health.Port)
	}

	return o, nil
}

// Start runs preflight, initializes the cursor, then blocks in the scan
// loop until the context is canceled, Stop is called, or a fatal error
// occurs. The returned error is nil only for a clean shutdown.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	o.cancel = cancel
	o.started = true
	o.mu.Unlock()
	defer close(o.done)

	if err := o.preflight(runCtx); err != nil {
		return o.exit(err)
	}
	if err := o.initCursor(runCtx); err != nil {
		return o.exit(err)
	}

	o.setState(StateRunning)

	g, gctx := errgroup.WithContext(runCtx)
	if o.healthSrv != nil {
		g.Go(func() error {
			if err := o.healthSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return o.healthSrv.Stop(shutdownCtx)
		})
	}
	if o.pruner != nil {
		g.Go(func() error { return o.pruner.Run(gctx) })
	}
	g.Go(func() error { return o.run(gctx) })

	return o.exit(g.Wait())
}

// exit settles the terminal state. Context cancellation is the clean
// shutdown path; everything else is fatal.
func (o *Orchestrator) exit(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		o.setState(StateStopping)
		o.setState(StateStopped)
		o.log.Info("watcher stopped")
		return nil
	}
	o.setState(StateFailed)
	o.log.Error("watcher failed", "error", err)
	return err
}

// Stop requests shutdown and waits for Start to return, up to the hard
// exit deadline.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	cancel, started := o.cancel, o.started
	o.mu.Unlock()

	if !started {
		return nil
	}
	o.setState(StateStopping)
	cancel()

	select {
	case <-o.done:
		return nil
	case <-time.After(stopDeadline):
		return fmt.Errorf("shutdown exceeded %s", stopDeadline)
	}
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close releases connections. Call after Start has returned.
func (o *Orchestrator) Close() {
	if err := o.emitter.Close(); err != nil {
		o.log.Warn("failed to close emitter", "error", err)
	}
	o.closeStorage()
	if o.rpcClient != nil {
		o.rpcClient.Close()
	}
}

func (o *Orchestrator) closeStorage() {
	if o.redis != nil {
		if err := o.redis.Close(); err != nil {
			o.log.Warn("failed to close redis", "error", err)
		}
	}
	if o.db != nil {
		if err := o.db.Close(); err != nil {
			o.log.Warn("failed to close database", "error", err)
		}
	}
}

// preflight verifies the ledger answers and actually is the configured
// chain. A watcher pointed at the wrong network would otherwise deliver
// records with a wrong sourceChainId, which the oracle cannot detect.
func (o *Orchestrator) preflight(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = 30 * time.Second

	var remoteID uint64
	op := func() error {
		var err error
		remoteID, err = o.ledger.ChainID(ctx)
		if err != nil && !rpc.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("query ledger chain id: %w", err)
	}

	if remoteID != o.cfg.Chain.ChainID {
		return fmt.Errorf("ledger reports chain id %d, config expects %d", remoteID, o.cfg.Chain.ChainID)
	}

	o.log.Info("preflight passed",
		"chain_id", remoteID,
		"contract", o.cfg.Chain.ContractAddress,
	)
	return nil
}

// initCursor loads the checkpoint, or derives the first one: an explicit
// start height wins, otherwise the cursor drops a backfill window behind
// the current safe height so a fresh deployment picks up recent history.
func (o *Orchestrator) initCursor(ctx context.Context) error {
	height, err := o.tracker.Load(ctx)
	if err == nil {
		metrics.CursorHeight.WithLabelValues(o.chainLabel).Set(float64(height))
		o.log.Info("resuming from checkpoint", "height", height)
		return nil
	}
	if !errors.Is(err, storage.ErrCheckpointNotFound) {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	var initial uint64
	if o.cfg.Chain.StartHeight > 0 {
		initial = o.cfg.Chain.StartHeight - 1
	} else {
		head, err := o.ledger.HeadHeight(ctx)
		if err != nil {
			return fmt.Errorf("fetch head for first run: %w", err)
		}
		var safe uint64
		if head > o.cfg.Chain.Confirmations() {
			safe = head - o.cfg.Chain.Confirmations()
		}
		if safe > o.cfg.Chain.BackfillWindow {
			initial = safe - o.cfg.Chain.BackfillWindow
		}
	}

	if err := o.tracker.Initialize(ctx, initial); err != nil {
		return fmt.Errorf("initialize checkpoint: %w", err)
	}
	metrics.CursorHeight.WithLabelValues(o.chainLabel).Set(float64(initial))
	o.log.Info("first run, cursor initialized", "height", initial)
	return nil
}

func (o *Orchestrator) run(ctx context.Context) error {
	interval := o.cfg.Scanner.PollInterval.Std()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.log.Info("watcher running",
		"chain_id", o.cfg.Chain.ChainID,
		"poll_interval", interval,
		"confirmations", o.cfg.Chain.Confirmations(),
		"max_range", o.cfg.Scanner.MaxRangeSize,
	)

	for {
		if err := o.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick is one full pass: scan the safe window, deliver what it found, and
// advance the cursor only when every record in the batch settled.
func (o *Orchestrator) tick(ctx context.Context) error {
	batch, err := o.scanner.Scan(ctx)
	if err != nil {
		return o.handleScanError(ctx, err)
	}
	o.resetLedgerFailures()

	if batch == nil {
		return nil
	}

	settled, err := o.resolveBatch(ctx, batch)
	if err != nil {
		return err
	}
	if !settled {
		// The unresolved tail of this range comes back on the next scan;
		// the API dedups re-delivered nonces.
		return nil
	}

	if err := o.tracker.Advance(ctx, batch.FromHeight, batch.ToHeight); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", batch.ToHeight, err)
	}
	metrics.CursorHeight.WithLabelValues(o.chainLabel).Set(float64(batch.ToHeight))

	if batch.Size() > 0 {
		o.log.Info("range resolved",
			"from", batch.FromHeight, "to", batch.ToHeight, "records", batch.Size())
	}
	return nil
}

// handleScanError decides whether a ledger failure is survivable. The
// watcher idles through transient outages; it terminates on fatal RPC
// errors or once the consecutive-failure limit is hit.
func (o *Orchestrator) handleScanError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !rpc.IsRetryable(err) {
		return fmt.Errorf("ledger query rejected: %w", err)
	}

	metrics.LedgerFailures.WithLabelValues(o.chainLabel).Inc()
	failures := o.bumpLedgerFailures()

	if limit := o.cfg.Scanner.MaxConsecutiveLedgerFailures; limit > 0 && failures >= limit {
		return fmt.Errorf("ledger unreachable for %d consecutive ticks: %w", failures, err)
	}

	if rpc.IsThrottled(err) {
		o.log.Warn("ledger throttling requests, waiting for next tick",
			"consecutive_failures", failures, "error", err)
	} else {
		o.log.Warn("ledger unavailable, waiting for next tick",
			"consecutive_failures", failures, "error", err)
	}
	return nil
}

// resolveBatch delivers records in chain order and reports whether the
// whole batch settled. Delivered and permanently rejected records are
// settled; the first retryable failure stops the batch so the cursor
// stays put.
func (o *Orchestrator) resolveBatch(ctx context.Context, batch *domain.Batch) (bool, error) {
	for _, rec := range batch.Records {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		delivery := o.sink.Deliver(ctx, rec)
		o.emitOutcome(ctx, rec, delivery)

		switch delivery.Outcome {
		case domain.OutcomeDelivered:

		case domain.OutcomeRejectedPermanently:
			o.log.Warn("record rejected permanently",
				"nonce", rec.Nonce, "tx", rec.TransactionHash, "error", delivery.Err)
			o.recordRejection(ctx, rec, delivery)

		case domain.OutcomeRetryableFailure:
			if errors.Is(delivery.Err, context.Canceled) {
				return false, delivery.Err
			}
			o.log.Warn("delivery failed, holding cursor for rescan",
				"nonce", rec.Nonce,
				"tx", rec.TransactionHash,
				"attempts", delivery.Attempts,
				"error", delivery.Err,
			)
			return false, nil
		}
	}
	return true, nil
}

func (o *Orchestrator) emitOutcome(ctx context.Context, rec domain.EventRecord, d domain.Delivery) {
	if err := o.emitter.EmitOutcome(ctx, rec, d); err != nil {
		o.log.Warn("failed to emit outcome", "nonce", rec.Nonce, "error", err)
	}
}

func (o *Orchestrator) recordRejection(ctx context.Context, rec domain.EventRecord, d domain.Delivery) {
	payload, _ := json.Marshal(rec)
	dl := &domain.DeadLetter{
		ID:          uuid.New().String(),
		Kind:        domain.DeadLetterRejected,
		ChainID:     o.cfg.Chain.ChainID,
		BlockNumber: rec.BlockNumber,
		TxHash:      rec.TransactionHash,
		LogIndex:    rec.LogIndex,
		Nonce:       rec.Nonce,
		Reason:      d.Err.Error(),
		Payload:     payload,
	}
	if err := o.deadLetters.Add(ctx, dl); err != nil {
		o.log.Warn("failed to record dead letter", "nonce", rec.Nonce, "error", err)
	}
}

func (o *Orchestrator) setState(to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == to {
		return
	}
	if !CanTransition(o.state, to) {
		o.log.Warn("ignoring invalid state transition", "from", o.state, "to", to)
		return
	}
	o.log.Info("state changed", "from", o.state, "to", to)
	o.state = to
}

func (o *Orchestrator) bumpLedgerFailures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledgerFailures++
	return o.ledgerFailures
}

func (o *Orchestrator) resetLedgerFailures() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledgerFailures = 0
}

// CheckHealth implements health.Source. Reports are cached briefly so
// probes cannot spam the ledger RPC.
func (o *Orchestrator) CheckHealth(ctx context.Context) health.Report {
	o.mu.Lock()
	if !o.lastCheck.IsZero() && time.Since(o.lastCheck) < healthCacheTTL {
		report := o.lastReport
		o.mu.Unlock()
		return report
	}
	state := o.state
	failures := o.ledgerFailures
	o.mu.Unlock()

	report := health.Report{
		Status:         health.StatusHealthy,
		State:          string(state),
		ChainID:        o.cfg.Chain.ChainID,
		CursorHeight:   o.tracker.Height(),
		LedgerFailures: failures,
		CheckedAt:      time.Now().UTC(),
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	head, err := o.ledger.HeadHeight(checkCtx)
	if err != nil {
		report.Status = health.StatusDegraded
	} else {
		report.HeadHeight = head
		if lag := o.tracker.Lag(head); lag > 0 {
			report.BlockLag = lag
		}
	}
	if n, err := o.deadLetters.Count(checkCtx, o.cfg.Chain.ChainID); err == nil {
		report.DeadLetters = n
	}

	switch {
	case state == StateFailed:
		report.Status = health.StatusCritical
	case state != StateRunning || failures > 0:
		report.Status = health.StatusDegraded
	}

	o.mu.Lock()
	o.lastReport = report
	o.lastCheck = time.Now()
	o.mu.Unlock()

	return report
}
