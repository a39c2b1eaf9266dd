// Package sqlstore implements storage.Repository on PostgreSQL (lib/pq or pgx)
// and on embedded SQLite. Queries are built with goqu so the same code serves
// both dialects; sqlx handles scanning and transactions.
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"libralend/internal/storage"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"
)

// Store is a SQL-backed storage.Repository.
type Store struct {
	queries
	db     *sqlx.DB
	tracer trace.Tracer
}

var _ storage.Repository = (*Store)(nil)

// queries holds every statement; it runs against either the pool or a transaction.
type queries struct {
	q       sqlx.ExtContext
	dialect goqu.DialectWrapper
}

// Open connects to the database, verifies the connection and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var dialect string
	switch driver {
	case DriverPostgres, DriverPgx:
		dialect = dialectPostgres
	case DriverSQLite:
		dialect = dialectSQLite
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection pool. dialect is "postgres" or "sqlite3".
func New(db *sqlx.DB, dialect string) *Store {
	return &Store{
		queries: queries{q: db, dialect: goqu.Dialect(dialect)},
		db:      db,
		tracer:  otel.Tracer("libralend/sqlstore"),
	}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a database transaction. The transaction is
// rolled back if fn returns an error or panics.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "sqlstore.transaction")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, "begin failed")
		return classify(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(ctx, &queries{q: tx, dialect: s.queries.dialect}); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(); err != nil {
		span.SetStatus(codes.Error, "commit failed")
		return classify(err, "commit transaction")
	}
	span.SetAttributes(attribute.Bool("tx.committed", true))
	return nil
}

// sqliteDSN turns a file path into a DSN that makes every pooled connection
// wait on locks and take the write lock at BEGIN.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_txlock=") {
		return path
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join([]string{
		"_pragma=busy_timeout(10000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=synchronous(NORMAL)",
		"_txlock=immediate",
	}, "&")
}

type statement interface {
	ToSQL() (string, []any, error)
}

func (q *queries) get(ctx context.Context, dest any, stmt statement, op string) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build %s query: %w", op, err)
	}
	return classify(sqlx.GetContext(ctx, q.q, dest, query, args...), op)
}

func (q *queries) selectAll(ctx context.Context, dest any, stmt statement, op string) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build %s query: %w", op, err)
	}
	return classify(sqlx.SelectContext(ctx, q.q, dest, query, args...), op)
}

// exec runs stmt and returns the number of affected rows.
func (q *queries) exec(ctx context.Context, stmt statement, op string) (int64, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build %s query: %w", op, err)
	}
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows for %s: %w", op, err)
	}
	return n, nil
}
