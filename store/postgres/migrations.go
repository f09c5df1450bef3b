package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the stream ledger store.
var Migrations = migrate.NewGroup("streamledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_streamledger_streams",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streamledger_streams (
    id              TEXT PRIMARY KEY,
    payer           TEXT NOT NULL DEFAULT '',
    payee           TEXT NOT NULL DEFAULT '',
    rate_per_second TEXT NOT NULL DEFAULT '0',
    start_time      BIGINT NOT NULL DEFAULT 0,
    end_time        BIGINT NOT NULL DEFAULT 0,
    settled_amount  TEXT NOT NULL DEFAULT '0',
    status          TEXT NOT NULL DEFAULT 'active',
    app_id          TEXT NOT NULL DEFAULT '',
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_streamledger_streams_app ON streamledger_streams (app_id);
CREATE INDEX IF NOT EXISTS idx_streamledger_streams_status ON streamledger_streams (app_id, status);
CREATE INDEX IF NOT EXISTS idx_streamledger_streams_payer ON streamledger_streams (payer);
CREATE INDEX IF NOT EXISTS idx_streamledger_streams_payee ON streamledger_streams (payee);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streamledger_streams`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_streamledger_receipts",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streamledger_receipts (
    id                 TEXT PRIMARY KEY,
    stream_id          TEXT NOT NULL DEFAULT '',
    payer              TEXT NOT NULL DEFAULT '',
    payee              TEXT NOT NULL DEFAULT '',
    amount_transferred TEXT NOT NULL DEFAULT '0',
    new_settled_total  TEXT NOT NULL DEFAULT '0',
    at_time            BIGINT NOT NULL DEFAULT 0,
    app_id             TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_streamledger_receipts_stream ON streamledger_receipts (stream_id, at_time);
CREATE INDEX IF NOT EXISTS idx_streamledger_receipts_app ON streamledger_receipts (app_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streamledger_receipts`)
				return err
			},
		},
	)
}
