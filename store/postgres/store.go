// Package postgres implements the store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	streamledger "github.com/xraph/streamledger"
	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
	sstore "github.com/xraph/streamledger/store"
)

// compile-time interface check
var _ sstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("streamledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("streamledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Stream Store ====================

func (s *Store) CreateStream(ctx context.Context, st *stream.Stream) error {
	m := toStreamModel(st)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	m := new(streamModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", streamID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, streamledger.ErrStreamNotFound
		}
		return nil, err
	}
	return fromStreamModel(m)
}

func (s *Store) ListStreams(ctx context.Context, appID string, opts stream.ListOpts) ([]*stream.Stream, error) {
	var models []streamModel
	q := s.pg.NewSelect(&models).Where("app_id = $1", appID)

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Payer != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("payer = $%d", argIdx), opts.Payer)
	}
	if opts.Payee != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("payee = $%d", argIdx), opts.Payee)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		st, err := fromStreamModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	m := toStreamModel(st)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return streamledger.ErrStreamNotFound
	}
	return nil
}

// ApplySettlement persists the settled stream and its receipt in one
// data-modifying CTE, so both writes commit or roll back together.
func (s *Store) ApplySettlement(ctx context.Context, st *stream.Stream, r *settlement.Receipt) error {
	t := now()
	var updated int64
	err := s.pg.NewRaw(`
WITH updated AS (
    UPDATE streamledger_streams
    SET settled_amount = $2, status = $3, updated_at = $4
    WHERE id = $1
    RETURNING id
), inserted AS (
    INSERT INTO streamledger_receipts
        (id, stream_id, payer, payee, amount_transferred, new_settled_total, at_time, app_id, created_at, updated_at)
    SELECT $5, id, $6, $7, $8, $9, $10, $11, $4, $4 FROM updated
)
SELECT COUNT(*) FROM updated
`,
		st.ID.String(),
		st.SettledAmount.String(),
		string(st.Status),
		t,
		r.ID.String(),
		r.Payer,
		r.Payee,
		r.AmountTransferred.String(),
		r.NewSettledTotal.String(),
		r.AtTime,
		r.AppID,
	).Scan(ctx, &updated)
	if err != nil {
		return fmt.Errorf("%w: %v", streamledger.ErrTransactionFailed, err)
	}
	if updated == 0 {
		return streamledger.ErrStreamNotFound
	}
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*settlement.Receipt, error) {
	m := new(receiptModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", receiptID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, streamledger.ErrReceiptNotFound
		}
		return nil, err
	}
	return fromReceiptModel(m)
}

func (s *Store) ListReceipts(ctx context.Context, streamID id.StreamID, opts settlement.ListOpts) ([]*settlement.Receipt, error) {
	var models []receiptModel
	q := s.pg.NewSelect(&models).Where("stream_id = $1", streamID.String())

	argIdx := 1
	if opts.Start != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("at_time >= $%d", argIdx), opts.Start)
	}
	if opts.End != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("at_time <= $%d", argIdx), opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("at_time ASC, created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*settlement.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
