// Package audithook bridges stream ledger lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/streamledger/batch"
	"github.com/xraph/streamledger/plugin"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnStreamCreated    = (*Extension)(nil)
	_ plugin.OnStreamPaused     = (*Extension)(nil)
	_ plugin.OnStreamResumed    = (*Extension)(nil)
	_ plugin.OnStreamCancelled  = (*Extension)(nil)
	_ plugin.OnStreamSettled    = (*Extension)(nil)
	_ plugin.OnWithdrawal       = (*Extension)(nil)
	_ plugin.OnOverflowDetected = (*Extension)(nil)
	_ plugin.OnBatchValidated   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges stream ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"payer", s.Payer,
		"payee", s.Payee,
		"rate", s.RatePerSecond.String(),
	)
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (e *Extension) OnStreamPaused(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamPaused, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"payer", s.Payer,
	)
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (e *Extension) OnStreamResumed(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamResumed, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"payer", s.Payer,
	)
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (e *Extension) OnStreamCancelled(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamCancelled, SeverityWarning, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"payer", s.Payer,
		"settled_amount", s.SettledAmount.String(),
	)
}

// OnStreamSettled implements plugin.OnStreamSettled.
func (e *Extension) OnStreamSettled(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamSettled, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryLifecycle, nil,
		"settled_amount", s.SettledAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnWithdrawal implements plugin.OnWithdrawal.
func (e *Extension) OnWithdrawal(ctx context.Context, s *stream.Stream, r *settlement.Receipt) error {
	return e.record(ctx, ActionWithdrawal, SeverityInfo, OutcomeSuccess,
		ResourceReceipt, r.ID.String(), CategorySettlement, nil,
		"stream_id", s.ID.String(),
		"amount", r.AmountTransferred.String(),
		"new_settled_total", r.NewSettledTotal.String(),
		"at_time", r.AtTime,
	)
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnOverflowDetected implements plugin.OnOverflowDetected.
func (e *Extension) OnOverflowDetected(ctx context.Context, streamID, op string, err error) error {
	return e.record(ctx, ActionOverflowDetected, SeverityCritical, OutcomeFailure,
		ResourceStream, streamID, CategoryIntegrity, err,
		"operation", op,
	)
}

// OnBatchValidated implements plugin.OnBatchValidated.
func (e *Extension) OnBatchValidated(ctx context.Context, size int, failures []*batch.Error) error {
	if len(failures) == 0 {
		// Only audit batches with failures to reduce noise.
		return nil
	}
	indices := make([]int, 0, len(failures))
	for _, f := range failures {
		indices = append(indices, f.Index)
	}
	return e.record(ctx, ActionBatchValidated, SeverityWarning, OutcomePartial,
		ResourceBatch, "", CategoryReconciliation, nil,
		"size", size,
		"failure_count", len(failures),
		"failure_indices", indices,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
