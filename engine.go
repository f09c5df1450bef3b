package streamledger

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/streamledger/batch"
	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/plugin"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/store"
	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

// Engine is the main settlement engine. It owns no clock: every
// time-dependent operation takes the observation time from the caller,
// so identical inputs always produce identical results.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Per-stream striped locks serialize settlements against the same
	// stream without a global lock across unrelated streams.
	stripes []sync.Mutex

	// Background workers
	receiptBuffer chan *settlement.Receipt
	stopChan      chan struct{}
	wg            sync.WaitGroup

	// Configuration
	maxBatchSize      int
	notifyBatchSize   int
	notifyInterval    time.Duration
	transferProvider  string
	attestationScheme string
	disableMigrate    bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		stripes:         make([]sync.Mutex, 64),
		receiptBuffer:   make(chan *settlement.Receipt, 10000),
		stopChan:        make(chan struct{}),
		maxBatchSize:    1000,
		notifyBatchSize: 100,
		notifyInterval:  5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMaxBatchSize caps the number of streams accepted by batch
// operations. Zero means unbounded.
func WithMaxBatchSize(n int) Option {
	return func(e *Engine) {
		e.maxBatchSize = n
	}
}

// WithLockStripes sets the number of per-stream lock stripes.
func WithLockStripes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.stripes = make([]sync.Mutex, n)
		}
	}
}

// WithNotifyConfig configures receipt notification batching.
func WithNotifyConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.notifyBatchSize = batchSize
		e.notifyInterval = flushInterval
	}
}

// WithTransferProvider names the transfer provider consulted on each
// withdrawal. The provider must be registered as a plugin. Empty means
// accounting-only settlement with no value movement.
func WithTransferProvider(name string) Option {
	return func(e *Engine) {
		e.transferProvider = name
	}
}

// WithAttestationScheme names the attestation provider used by Attest.
func WithAttestationScheme(scheme string) Option {
	return func(e *Engine) {
		e.attestationScheme = scheme
	}
}

// WithDisableMigrate skips store migration on Start. Use when migrations
// are managed externally.
func WithDisableMigrate() Option {
	return func(e *Engine) {
		e.disableMigrate = true
	}
}

// Plugins exposes the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if !e.disableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start receipt notification worker
	e.wg.Add(1)
	go e.receiptFlushWorker(ctx)

	e.logger.Info("stream ledger started",
		"max_batch_size", e.maxBatchSize,
		"notify_batch_size", e.notifyBatchSize,
		"notify_interval", e.notifyInterval,
		"lock_stripes", len(e.stripes),
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

func (e *Engine) lockFor(streamID id.StreamID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(streamID.String())) //nolint:errcheck // fnv never fails
	return &e.stripes[h.Sum32()%uint32(len(e.stripes))]
}

// ──────────────────────────────────────────────────
// Stream Management
// ──────────────────────────────────────────────────

// CreateStream validates and opens a new payment stream. A stream whose
// total capacity would be unrepresentable is rejected here, before
// anything is persisted.
func (e *Engine) CreateStream(ctx context.Context, payer, payee string, rate types.Amount, start, end int64) (*stream.Stream, error) {
	s, err := stream.New(payer, payee, rate, start, end)
	if err != nil {
		if IsFatal(err) {
			e.plugins.EmitOverflowDetected(ctx, "", "create", err)
		}
		return nil, err
	}

	if err := e.store.CreateStream(ctx, s); err != nil {
		return nil, err
	}

	e.plugins.EmitStreamCreated(ctx, s)
	e.logger.Debug("stream created",
		"stream_id", s.ID.String(),
		"payer", s.Payer,
		"payee", s.Payee,
		"rate", s.RatePerSecond.String(),
	)
	return s, nil
}

// GetStream retrieves a stream by ID.
func (e *Engine) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	return e.store.GetStream(ctx, streamID)
}

// ListStreams lists streams for an app.
func (e *Engine) ListStreams(ctx context.Context, appID string, opts stream.ListOpts) ([]*stream.Stream, error) {
	return e.store.ListStreams(ctx, appID, opts)
}

// StatusAt classifies a stream as observed at now.
func (e *Engine) StatusAt(ctx context.Context, streamID id.StreamID, now int64) (stream.Status, error) {
	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return "", err
	}
	return s.StatusAt(now)
}

// ──────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────

// WithdrawableAt returns the value withdrawable from a stream at now.
func (e *Engine) WithdrawableAt(ctx context.Context, streamID id.StreamID, now int64) (types.Amount, error) {
	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return types.Amount{}, err
	}
	return settlement.Withdrawable(s, now)
}

// Withdraw applies a settlement request. The stream's stripe lock
// serializes concurrent withdrawals against the same stream; the
// settlement itself is all-or-nothing, and the stream update and the
// receipt are persisted together.
func (e *Engine) Withdraw(ctx context.Context, req settlement.Request) (*settlement.Receipt, error) {
	mu := e.lockFor(req.StreamID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.GetStream(ctx, req.StreamID)
	if err != nil {
		return nil, err
	}

	rcpt, err := settlement.Apply(s, req)
	if err != nil {
		if IsFatal(err) {
			e.plugins.EmitOverflowDetected(ctx, req.StreamID.String(), "withdraw", err)
		}
		return nil, err
	}

	// Move the value before recording it. A transfer failure aborts the
	// settlement with nothing persisted.
	if e.transferProvider != "" {
		tp := e.plugins.GetTransferProvider(e.transferProvider)
		if tp == nil {
			return nil, ErrInvalidInput
		}
		if err := tp.Transfer(ctx, rcpt.Payer, rcpt.Payee, rcpt.AmountTransferred); err != nil {
			return nil, err
		}
	}

	if err := e.store.ApplySettlement(ctx, s, rcpt); err != nil {
		return nil, err
	}

	e.plugins.EmitWithdrawal(ctx, s, rcpt)
	if s.Status == stream.StatusSettled {
		e.plugins.EmitStreamSettled(ctx, s)
	}
	e.enqueueReceipt(rcpt)

	e.logger.Debug("settlement applied",
		"stream_id", s.ID.String(),
		"amount", rcpt.AmountTransferred.String(),
		"settled_total", rcpt.NewSettledTotal.String(),
		"at_time", rcpt.AtTime,
	)
	return rcpt, nil
}

// Pause suspends withdrawals from a stream.
func (e *Engine) Pause(ctx context.Context, streamID id.StreamID) error {
	return e.transition(ctx, streamID, settlement.Pause, e.plugins.EmitStreamPaused)
}

// Resume lifts a pause.
func (e *Engine) Resume(ctx context.Context, streamID id.StreamID) error {
	return e.transition(ctx, streamID, settlement.Resume, e.plugins.EmitStreamResumed)
}

// Cancel terminates a stream irrevocably.
func (e *Engine) Cancel(ctx context.Context, streamID id.StreamID) error {
	return e.transition(ctx, streamID, settlement.Cancel, e.plugins.EmitStreamCancelled)
}

func (e *Engine) transition(ctx context.Context, streamID id.StreamID, op func(*stream.Stream) error, emit func(context.Context, *stream.Stream)) error {
	mu := e.lockFor(streamID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return err
	}
	if err := op(s); err != nil {
		return err
	}
	if err := e.store.UpdateStream(ctx, s); err != nil {
		return err
	}

	emit(ctx, s)
	return nil
}

// GetReceipt retrieves a receipt by ID.
func (e *Engine) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*settlement.Receipt, error) {
	return e.store.GetReceipt(ctx, receiptID)
}

// ListReceipts lists the receipts of a stream in observation-time order.
func (e *Engine) ListReceipts(ctx context.Context, streamID id.StreamID, opts settlement.ListOpts) ([]*settlement.Receipt, error) {
	return e.store.ListReceipts(ctx, streamID, opts)
}

// ──────────────────────────────────────────────────
// Attestation
// ──────────────────────────────────────────────────

// Signals derives the public settlement signals of a stream at now.
func (e *Engine) Signals(ctx context.Context, streamID id.StreamID, now int64) (*settlement.PublicSignals, error) {
	s, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return settlement.Signals(s, now)
}

// Attest produces an attestation over the stream's settlement signals
// using the configured attestation scheme.
func (e *Engine) Attest(ctx context.Context, streamID id.StreamID, now int64) ([]byte, error) {
	if e.attestationScheme == "" {
		return nil, ErrInvalidInput
	}
	ap := e.plugins.GetAttestationProvider(e.attestationScheme)
	if ap == nil {
		return nil, ErrInvalidInput
	}

	sig, err := e.Signals(ctx, streamID, now)
	if err != nil {
		return nil, err
	}
	return ap.Attest(ctx, sig)
}

// ──────────────────────────────────────────────────
// Batch Reconciliation
// ──────────────────────────────────────────────────

// ValidateBatch validates every stream in the batch and returns all
// failures, each tagged with the index of the offending stream.
func (e *Engine) ValidateBatch(ctx context.Context, streams []*stream.Stream) []*batch.Error {
	failures := batch.Validate(streams, e.maxBatchSize)
	e.plugins.EmitBatchValidated(ctx, len(streams), failures)
	return failures
}

// AggregateCapacity sums the total capacity of the batch with full
// overflow checking.
func (e *Engine) AggregateCapacity(ctx context.Context, streams []*stream.Stream) (types.Amount, error) {
	total, err := batch.AggregateCapacity(streams)
	if err != nil && IsFatal(err) {
		e.plugins.EmitOverflowDetected(ctx, "", "aggregate_capacity", err)
	}
	return total, err
}

// GroupByPayer partitions the batch by paying party, preserving input
// order.
func (e *Engine) GroupByPayer(streams []*stream.Stream) []batch.Group {
	return batch.GroupBy(streams, batch.ByPayer)
}

// GroupByPayee partitions the batch by receiving party, preserving input
// order.
func (e *Engine) GroupByPayee(streams []*stream.Stream) []batch.Group {
	return batch.GroupBy(streams, batch.ByPayee)
}

// ──────────────────────────────────────────────────
// Receipt notifications
// ──────────────────────────────────────────────────

func (e *Engine) enqueueReceipt(r *settlement.Receipt) {
	select {
	case e.receiptBuffer <- r:
	default:
		// Notification delivery is best-effort; the receipt itself is
		// already durable.
		e.logger.Warn("receipt notification buffer full, dropping",
			"receipt_id", r.ID.String(),
		)
	}
}

// receiptFlushWorker batches receipt notifications for plugins.
func (e *Engine) receiptFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	pending := make([]*settlement.Receipt, 0, e.notifyBatchSize)
	lastFlush := time.Now()
	ticker := time.NewTicker(e.notifyInterval)
	defer ticker.Stop()

	flush := func() {
		e.plugins.EmitReceiptsFlushed(ctx, len(pending), time.Since(lastFlush))
		e.logger.Debug("flushed receipt notifications",
			"count", len(pending),
		)
		pending = make([]*settlement.Receipt, 0, e.notifyBatchSize)
		lastFlush = time.Now()
	}

	for {
		select {
		case <-e.stopChan:
			// Final flush
			if len(pending) > 0 {
				flush()
			}
			return

		case r := <-e.receiptBuffer:
			pending = append(pending, r)
			if len(pending) >= e.notifyBatchSize {
				flush()
			}

		case <-ticker.C:
			if len(pending) > 0 {
				flush()
			}
		}
	}
}
