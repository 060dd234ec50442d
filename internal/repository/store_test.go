package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Dialect: SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"", SQLite, false},
		{"sqlite", SQLite, false},
		{"PostgreSQL", Postgres, false},
		{"mariadb", MySQL, false},
		{"mongodb", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM t WHERE a = ? AND b = '?' AND c IN (?, ?)`
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("SQLite.Rebind() changed the query: %s", got)
	}
	want := `SELECT * FROM t WHERE a = $1 AND b = '?' AND c IN ($2, $3)`
	if got := Postgres.Rebind(q); got != want {
		t.Errorf("Postgres.Rebind() = %s, want %s", got, want)
	}
}

func TestSchemaPerDialect(t *testing.T) {
	for _, stmt := range MySQL.schema() {
		if strings.Contains(stmt, "CREATE INDEX") {
			t.Errorf("mysql schema uses CREATE INDEX IF NOT EXISTS: %s", stmt)
		}
	}
	pg := strings.Join(Postgres.schema(), "\n")
	if !strings.Contains(pg, "BIGSERIAL") || !strings.Contains(pg, "TIMESTAMPTZ") {
		t.Errorf("postgres schema missing dialect types")
	}
	if strings.Contains(pg, "{{") {
		t.Errorf("unreplaced template in postgres schema")
	}
}

func TestSQLiteTimeArgIsFixedWidth(t *testing.T) {
	a := SQLite.arg(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).(string)
	b := SQLite.arg(time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.FixedZone("x", 3600))).(string)
	if len(a) != len(b) {
		t.Errorf("time args differ in width: %q %q", a, b)
	}
	if a != "2024-01-01T00:00:00.000000Z" {
		t.Errorf("arg = %q", a)
	}
}

func TestWithTxCommitAndRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	logs := NewLogRepository()
	now := time.Now().UTC()

	err := s.WithTx(ctx, func(tx *Tx) error {
		return logs.Create(ctx, tx, &model.ProcessingLog{BatchID: "kept", Status: model.StatusProcessing, StartedAt: now})
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx *Tx) error {
		if err := logs.Create(ctx, tx, &model.ProcessingLog{BatchID: "dropped", Status: model.StatusProcessing, StartedAt: now}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if _, err := logs.GetByBatchID(ctx, s, "kept"); err != nil {
		t.Errorf("committed log missing: %v", err)
	}
	if _, err := logs.GetByBatchID(ctx, s, "dropped"); !model.IsNotFound(err) {
		t.Errorf("rolled back log present: %v", err)
	}
	if inUse := s.Stats().InUse; inUse != 0 {
		t.Errorf("connections in use = %d, want 0", inUse)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	logs := NewLogRepository()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("panic was swallowed")
			}
		}()
		_ = s.WithTx(ctx, func(tx *Tx) error {
			_ = logs.Create(ctx, tx, &model.ProcessingLog{BatchID: "p", Status: model.StatusProcessing, StartedAt: time.Now()})
			panic("boom")
		})
	}()

	if _, err := logs.GetByBatchID(ctx, s, "p"); !model.IsNotFound(err) {
		t.Errorf("log from panicking tx present: %v", err)
	}
	if inUse := s.Stats().InUse; inUse != 0 {
		t.Errorf("connections in use = %d, want 0", inUse)
	}
}

func TestSavepointIsolatesFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	logs := NewLogRepository()
	now := time.Now().UTC()
	failed := errors.New("item failed")

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.Savepoint(ctx, "item_0", func() error {
			return logs.Create(ctx, tx, &model.ProcessingLog{BatchID: "a", Status: model.StatusProcessing, StartedAt: now})
		}); err != nil {
			return err
		}

		err := tx.Savepoint(ctx, "item_1", func() error {
			if err := logs.Create(ctx, tx, &model.ProcessingLog{BatchID: "b", Status: model.StatusProcessing, StartedAt: now}); err != nil {
				return err
			}
			return failed
		})
		if !errors.Is(err, failed) || errors.Is(err, ErrTxBroken) {
			t.Errorf("Savepoint() error = %v, want item failure", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	if _, err := logs.GetByBatchID(ctx, s, "a"); err != nil {
		t.Errorf("log a missing: %v", err)
	}
	if _, err := logs.GetByBatchID(ctx, s, "b"); !model.IsNotFound(err) {
		t.Errorf("log b should have been rolled back to the savepoint: %v", err)
	}
}
