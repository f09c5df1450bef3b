// Package mongo implements the store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	streamledger "github.com/xraph/streamledger"
	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
	sstore "github.com/xraph/streamledger/store"
)

// Collection name constants.
const (
	colStreams  = "streamledger_streams"
	colReceipts = "streamledger_receipts"
)

// compile-time interface check
var _ sstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all stream ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("streamledger/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return streamledger.ErrAlreadyExists
		}
		return fmt.Errorf("streamledger/mongo: create stream: %w", err)
	}
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	var m streamModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": streamID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, streamledger.ErrStreamNotFound
		}
		return nil, fmt.Errorf("streamledger/mongo: get stream: %w", err)
	}
	return fromStreamModel(&m)
}

func (s *Store) ListStreams(ctx context.Context, appID string, opts stream.ListOpts) ([]*stream.Stream, error) {
	var models []streamModel

	filter := bson.M{"app_id": appID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Payer != "" {
		filter["payer"] = opts.Payer
	}
	if opts.Payee != "" {
		filter["payee"] = opts.Payee
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streamledger/mongo: list streams: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streamledger/mongo: update stream: %w", err)
	}
	if res.MatchedCount() == 0 {
		return streamledger.ErrStreamNotFound
	}
	return nil
}

// ApplySettlement persists the settled stream and appends its receipt.
// The receipt _id is unique, so a retry after a partial failure cannot
// double-append; the stream update is idempotent for the same receipt.
func (s *Store) ApplySettlement(ctx context.Context, st *stream.Stream, r *settlement.Receipt) error {
	t := now()
	res, err := s.mdb.NewUpdate((*streamModel)(nil)).
		Filter(bson.M{"_id": st.ID.String()}).
		Set("settled_amount", st.SettledAmount.String()).
		Set("status", string(st.Status)).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", streamledger.ErrTransactionFailed, err)
	}
	if res.MatchedCount() == 0 {
		return streamledger.ErrStreamNotFound
	}

	m := toReceiptModel(r)
	m.CreatedAt = t
	m.UpdatedAt = t
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return streamledger.ErrAlreadyExists
		}
		return fmt.Errorf("%w: %v", streamledger.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*settlement.Receipt, error) {
	var m receiptModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": receiptID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, streamledger.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("streamledger/mongo: get receipt: %w", err)
	}
	return fromReceiptModel(&m)
}

func (s *Store) ListReceipts(ctx context.Context, streamID id.StreamID, opts settlement.ListOpts) ([]*settlement.Receipt, error) {
	var models []receiptModel

	filter := bson.M{"stream_id": streamID.String()}
	atTime := bson.M{}
	if opts.Start != 0 {
		atTime["$gte"] = opts.Start
	}
	if opts.End != 0 {
		atTime["$lte"] = opts.End
	}
	if len(atTime) > 0 {
		filter["at_time"] = atTime
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "at_time", Value: 1}, {Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streamledger/mongo: list receipts: %w", err)
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

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colStreams: {
			{Keys: bson.D{{Key: "app_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "app_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "payer", Value: 1}}},
			{Keys: bson.D{{Key: "payee", Value: 1}}},
		},
		colReceipts: {
			{Keys: bson.D{{Key: "stream_id", Value: 1}, {Key: "at_time", Value: 1}}},
			{Keys: bson.D{{Key: "app_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "stream_id", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
