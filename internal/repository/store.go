package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/model"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// ErrTxBroken marks a failure after which the enclosing transaction can no
// longer be used and must be rolled back.
var ErrTxBroken = errors.New("transaction is no longer usable")

// Options configures a Store.
type Options struct {
	Dialect Dialect
	// DSN is the connection string; for SQLite it is the database file path or ":memory:".
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Querier runs statements with ? placeholders against a database or transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	// InsertContext executes an INSERT and returns the generated id.
	InsertContext(ctx context.Context, query string, args ...any) (int64, error)
	Dialect() Dialect
}

// rawQuerier is the subset of *sql.DB and *sql.Tx that conn wraps.
type rawQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn rebinds placeholders and converts arguments for the dialect.
type conn struct {
	raw     rawQuerier
	dialect Dialect
}

func (c conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.raw.ExecContext(ctx, c.dialect.Rebind(query), c.dialect.args(args)...)
}

func (c conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.raw.QueryContext(ctx, c.dialect.Rebind(query), c.dialect.args(args)...)
}

func (c conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.raw.QueryRowContext(ctx, c.dialect.Rebind(query), c.dialect.args(args)...)
}

func (c conn) Dialect() Dialect { return c.dialect }

func (c conn) InsertContext(ctx context.Context, query string, args ...any) (int64, error) {
	if c.dialect.returnsID() {
		var id int64
		err := c.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := c.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Store owns the connection pool. Use WithTx for writes that must be atomic.
type Store struct {
	conn
	db *sql.DB
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dsn := opts.DSN
	if opts.Dialect == SQLite {
		var err error
		if dsn, err = sqliteDSN(opts.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.Dialect, err)
	}

	if opts.Dialect == SQLite {
		// SQLite only supports 1 writer; one connection also keeps :memory: alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 25))
		db.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 10))
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		} else {
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	}

	s := &Store{conn: conn{raw: db, dialect: opts.Dialect}, db: db}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Dialect, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logging.Component("Store").WithField("dialect", opts.Dialect).Info("store initialized")
	return s, nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" || path == ":memory:" {
		return ":memory:", nil
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Stats returns connection pool statistics.
func (s *Store) Stats() sql.DBStats { return s.db.Stats() }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside one transaction. The transaction is committed when fn
// returns nil and rolled back otherwise (including on panic); either way it is
// finished exactly once before WithTx returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StoreError{Op: "begin transaction", Err: err}
	}

	tx := &Tx{conn: conn{raw: sqlTx, dialect: s.dialect}, tx: sqlTx}
	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logging.Component("Store").WithError(rbErr).Warn("rollback failed")
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	done = true
	if err = sqlTx.Commit(); err != nil {
		return &model.StoreError{Op: "commit transaction", Err: err}
	}
	return nil
}

// Tx is an open transaction.
type Tx struct {
	conn
	tx *sql.Tx
}

// Savepoint runs fn inside a savepoint. If fn fails, only its own writes are
// undone and the transaction stays usable; fn's error is returned unchanged.
// Errors wrapping ErrTxBroken mean the savepoint itself could not be managed.
func (t *Tx) Savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("%w: savepoint %s: %v", ErrTxBroken, name, err)
	}

	if fnErr := fn(); fnErr != nil {
		if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return fmt.Errorf("%w: rollback to %s: %v (after %v)", ErrTxBroken, name, err, fnErr)
		}
		if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return fmt.Errorf("%w: release %s: %v", ErrTxBroken, name, err)
		}
		return fnErr
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("%w: release %s: %v", ErrTxBroken, name, err)
	}
	return nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*Tx)(nil)
)
