package repository

import (
	"context"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
)

// archivable selects logs completed before the cutoff argument.
const archivable = `completed_at IS NOT NULL AND completed_at < ?`

// ArchiveRepository moves aged processing logs into processing_logs_archive.
// Its statements are meant to run together inside one transaction.
type ArchiveRepository struct{}

// NewArchiveRepository creates a new archive repository.
func NewArchiveRepository() *ArchiveRepository {
	return &ArchiveRepository{}
}

// CountArchivable counts logs completed before cutoff.
func (r *ArchiveRepository) CountArchivable(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM processing_logs WHERE `+archivable, cutoff).Scan(&n); err != nil {
		return 0, &model.StoreError{Op: "count archivable logs", Err: err}
	}
	return n, nil
}

// ArchivableBatchIDs lists the distinct batch ids that CopyToArchive would move.
func (r *ArchiveRepository) ArchivableBatchIDs(ctx context.Context, q Querier, cutoff time.Time) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT batch_id FROM processing_logs WHERE `+archivable, cutoff)
	if err != nil {
		return nil, &model.StoreError{Op: "list archivable batches", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &model.StoreError{Op: "list archivable batches", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list archivable batches", Err: err}
	}
	return ids, nil
}

// CopyToArchive copies logs completed before cutoff into the archive table.
func (r *ArchiveRepository) CopyToArchive(ctx context.Context, q Querier, cutoff, archivedAt time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO processing_logs_archive (original_id, batch_id, source, status, total_items,
			processed_count, error_count, errors, error_message, started_at, completed_at, created_at, archived_at)
		SELECT id, batch_id, source, status, total_items, processed_count, error_count, errors,
			error_message, started_at, completed_at, created_at, `+q.Dialect().TimeParam()+`
		FROM processing_logs WHERE `+archivable,
		archivedAt, cutoff,
	)
	if err != nil {
		return 0, &model.StoreError{Op: "copy logs to archive", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &model.StoreError{Op: "copy logs to archive", Err: err}
	}
	return n, nil
}

// DeleteArchived removes logs completed before cutoff from the live table.
func (r *ArchiveRepository) DeleteArchived(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM processing_logs WHERE `+archivable, cutoff)
	if err != nil {
		return 0, &model.StoreError{Op: "delete archived logs", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &model.StoreError{Op: "delete archived logs", Err: err}
	}
	return n, nil
}

// ListArchived returns archived copies of a batch's logs, newest first.
func (r *ArchiveRepository) ListArchived(ctx context.Context, q Querier, batchID string) ([]model.ArchivedLog, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT original_id, archived_at, `+logColumns+` FROM processing_logs_archive
		WHERE batch_id = ? ORDER BY archived_at DESC, id DESC`, batchID)
	if err != nil {
		return nil, &model.StoreError{Op: "list archived logs", Err: err}
	}
	defer rows.Close()

	var out []model.ArchivedLog
	for rows.Next() {
		var (
			a          model.ArchivedLog
			archivedAt nullTime
		)
		log, err := scanLog(prefixScanner{rows, []any{&a.OriginalID, &archivedAt}})
		if err != nil {
			return nil, &model.StoreError{Op: "scan archived log", Err: err}
		}
		a.ProcessingLog = *log
		a.ArchivedAt = archivedAt.Time
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list archived logs", Err: err}
	}
	return out, nil
}

// prefixScanner scans extra leading columns before the wrapped destinations.
type prefixScanner struct {
	rowScanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rowScanner.Scan(append(p.prefix, dest...)...)
}
