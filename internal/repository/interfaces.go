package repository

import (
	"context"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
)

// DB is a store that can run standalone statements and transactions.
type DB interface {
	Querier

	// WithTx runs fn in a transaction that is committed on nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx *Tx) error) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// RecordVersioner keeps at most one current row per serial number.
type RecordVersioner interface {
	// Apply supersedes the current row for rec.SerialNumber and inserts rec as current.
	Apply(ctx context.Context, q Querier, rec *model.SystemRecord) error
}

// RecordStore is the read side of system records.
type RecordStore interface {
	RecordVersioner

	// Current returns the current row for a serial number, or ErrNotFound.
	Current(ctx context.Context, q Querier, serial string) (*model.SystemRecord, error)

	// History returns every stored version of a serial number, newest first.
	History(ctx context.Context, q Querier, serial string) ([]model.SystemRecord, error)

	// SyncStatuses maps each known serial number to its preferred sync state.
	SyncStatuses(ctx context.Context, q Querier, serials []string) (map[string]model.SyncStatus, error)

	// Counts returns the total and current row counts.
	Counts(ctx context.Context, q Querier) (total, current int, err error)
}

// LogStore defines processing log data access methods.
type LogStore interface {
	// Create inserts a log row and sets its ID.
	Create(ctx context.Context, q Querier, log *model.ProcessingLog) error

	// Finalize writes the terminal status and counters of a batch.
	Finalize(ctx context.Context, q Querier, id int64, c Completion) error

	// MarkFailed fails a processing row, inserting a failed row if it is gone.
	MarkFailed(ctx context.Context, q Querier, f Failure) (bool, error)

	// MarkStale fails processing rows started before cutoff.
	MarkStale(ctx context.Context, q Querier, cutoff time.Time, message string, now time.Time) (int64, error)

	// GetByBatchID returns the newest log of a batch, or ErrNotFound.
	GetByBatchID(ctx context.Context, q Querier, batchID string) (*model.ProcessingLog, error)

	// List returns a page of logs ordered by started_at descending.
	List(ctx context.Context, q Querier, lq ListQuery) (*model.LogPage, error)

	// DeleteByBatchID deletes a batch's logs, or returns ErrNotFound.
	DeleteByBatchID(ctx context.Context, q Querier, batchID string) (int64, error)

	// Stats counts logs by status and archived logs.
	Stats(ctx context.Context, q Querier) (*model.LogStats, error)
}

// ArchiveStore moves aged logs to the archive table.
type ArchiveStore interface {
	CountArchivable(ctx context.Context, q Querier, cutoff time.Time) (int64, error)
	ArchivableBatchIDs(ctx context.Context, q Querier, cutoff time.Time) ([]string, error)
	CopyToArchive(ctx context.Context, q Querier, cutoff, archivedAt time.Time) (int64, error)
	DeleteArchived(ctx context.Context, q Querier, cutoff time.Time) (int64, error)
	ListArchived(ctx context.Context, q Querier, batchID string) ([]model.ArchivedLog, error)
}

var (
	_ DB           = (*Store)(nil)
	_ RecordStore  = (*RecordRepository)(nil)
	_ LogStore     = (*LogRepository)(nil)
	_ ArchiveStore = (*ArchiveRepository)(nil)
)
