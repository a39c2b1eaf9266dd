package sqlstore

import (
	"context"
	"fmt"
)

// Money is kept as exact decimal text in SQLite; ids and dates as text so
// that lexical order matches creation and calendar order.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		author       TEXT NOT NULL DEFAULT '',
		cover        TEXT NOT NULL DEFAULT 'HARD' CHECK (cover IN ('HARD', 'SOFT')),
		total_copies INTEGER NOT NULL CHECK (total_copies >= 0),
		available    INTEGER NOT NULL CHECK (available >= 0),
		daily_rate   TEXT NOT NULL,
		CHECK (available <= total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id                   TEXT PRIMARY KEY,
		item_id              TEXT NOT NULL REFERENCES items(id),
		borrower_id          TEXT NOT NULL,
		borrow_date          TEXT NOT NULL,
		expected_return_date TEXT NOT NULL,
		actual_return_date   TEXT,
		CHECK (expected_return_date > borrow_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_outstanding
		ON loans(expected_return_date) WHERE actual_return_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS payments (
		id            TEXT PRIMARY KEY,
		loan_id       TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		kind          TEXT NOT NULL CHECK (kind IN ('RENTAL', 'FINE')),
		status        TEXT NOT NULL CHECK (status IN ('PENDING', 'PAID', 'EXPIRED')),
		amount        TEXT NOT NULL,
		session_token TEXT UNIQUE,
		session_url   TEXT,
		created_at    TIMESTAMP NOT NULL,
		paid_at       TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_fine
		ON payments(loan_id) WHERE kind = 'FINE'`,
	`CREATE TABLE IF NOT EXISTS events (
		id             INTEGER PRIMARY KEY,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        TEXT NOT NULL,
		version        INTEGER NOT NULL,
		created_at     TIMESTAMP NOT NULL,
		UNIQUE (aggregate_id, version)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id           UUID PRIMARY KEY,
		title        TEXT NOT NULL,
		author       TEXT NOT NULL DEFAULT '',
		cover        VARCHAR(4) NOT NULL DEFAULT 'HARD' CHECK (cover IN ('HARD', 'SOFT')),
		total_copies INTEGER NOT NULL CHECK (total_copies >= 0),
		available    INTEGER NOT NULL CHECK (available >= 0),
		daily_rate   NUMERIC(8, 2) NOT NULL CHECK (daily_rate > 0),
		CHECK (available <= total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id                   UUID PRIMARY KEY,
		item_id              UUID NOT NULL REFERENCES items(id),
		borrower_id          TEXT NOT NULL,
		borrow_date          DATE NOT NULL,
		expected_return_date DATE NOT NULL,
		actual_return_date   DATE,
		CONSTRAINT expected_return_date_must_be_after_borrow_date
			CHECK (expected_return_date > borrow_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_outstanding
		ON loans(expected_return_date) WHERE actual_return_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS payments (
		id            UUID PRIMARY KEY,
		loan_id       UUID NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		kind          VARCHAR(7) NOT NULL CHECK (kind IN ('RENTAL', 'FINE')),
		status        VARCHAR(7) NOT NULL CHECK (status IN ('PENDING', 'PAID', 'EXPIRED')),
		amount        NUMERIC(10, 2) NOT NULL CHECK (amount > 0),
		session_token TEXT UNIQUE,
		session_url   TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		paid_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_fine
		ON payments(loan_id) WHERE kind = 'FINE'`,
	`CREATE TABLE IF NOT EXISTS events (
		id             BIGSERIAL PRIMARY KEY,
		aggregate_id   UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		version        INT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (aggregate_id, version)
	)`,
}

// Migrate creates all tables and indexes that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == DriverSQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
