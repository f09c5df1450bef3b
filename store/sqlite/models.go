package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/streamledger/id"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

// Amounts are stored as base-10 strings, same as the postgres store:
// values reach 10^27 and beyond, past any integer column type.
type streamModel struct {
	grove.BaseModel `grove:"table:streamledger_streams"`

	ID            string            `grove:"id,pk"`
	Payer         string            `grove:"payer"`
	Payee         string            `grove:"payee"`
	RatePerSecond string            `grove:"rate_per_second"`
	StartTime     int64             `grove:"start_time"`
	EndTime       int64             `grove:"end_time"`
	SettledAmount string            `grove:"settled_amount"`
	Status        string            `grove:"status"`
	AppID         string            `grove:"app_id"`
	Metadata      map[string]string `grove:"metadata,type:json"`
	CreatedAt     time.Time         `grove:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"`
}

func toStreamModel(s *stream.Stream) *streamModel {
	return &streamModel{
		ID:            s.ID.String(),
		Payer:         s.Payer,
		Payee:         s.Payee,
		RatePerSecond: s.RatePerSecond.String(),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		SettledAmount: s.SettledAmount.String(),
		Status:        string(s.Status),
		AppID:         s.AppID,
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromStreamModel(m *streamModel) (*stream.Stream, error) {
	streamID, err := id.ParseStreamID(m.ID)
	if err != nil {
		return nil, err
	}
	rate, err := types.ParseAmount(m.RatePerSecond)
	if err != nil {
		return nil, err
	}
	settled, err := types.ParseAmount(m.SettledAmount)
	if err != nil {
		return nil, err
	}

	return &stream.Stream{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            streamID,
		Payer:         m.Payer,
		Payee:         m.Payee,
		RatePerSecond: rate,
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		SettledAmount: settled,
		Status:        stream.Status(m.Status),
		AppID:         m.AppID,
		Metadata:      m.Metadata,
	}, nil
}

type receiptModel struct {
	grove.BaseModel `grove:"table:streamledger_receipts"`

	ID                string    `grove:"id,pk"`
	StreamID          string    `grove:"stream_id"`
	Payer             string    `grove:"payer"`
	Payee             string    `grove:"payee"`
	AmountTransferred string    `grove:"amount_transferred"`
	NewSettledTotal   string    `grove:"new_settled_total"`
	AtTime            int64     `grove:"at_time"`
	AppID             string    `grove:"app_id"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toReceiptModel(r *settlement.Receipt) *receiptModel {
	return &receiptModel{
		ID:                r.ID.String(),
		StreamID:          r.StreamID.String(),
		Payer:             r.Payer,
		Payee:             r.Payee,
		AmountTransferred: r.AmountTransferred.String(),
		NewSettledTotal:   r.NewSettledTotal.String(),
		AtTime:            r.AtTime,
		AppID:             r.AppID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func fromReceiptModel(m *receiptModel) (*settlement.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, err
	}
	streamID, err := id.ParseStreamID(m.StreamID)
	if err != nil {
		return nil, err
	}
	transferred, err := types.ParseAmount(m.AmountTransferred)
	if err != nil {
		return nil, err
	}
	total, err := types.ParseAmount(m.NewSettledTotal)
	if err != nil {
		return nil, err
	}

	return &settlement.Receipt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                receiptID,
		StreamID:          streamID,
		Payer:             m.Payer,
		Payee:             m.Payee,
		AmountTransferred: transferred,
		NewSettledTotal:   total,
		AtTime:            m.AtTime,
		AppID:             m.AppID,
	}, nil
}
