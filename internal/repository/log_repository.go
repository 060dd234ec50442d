package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
)

const logColumns = `id, batch_id, source, status, total_items, processed_count, error_count,
	errors, error_message, started_at, completed_at, created_at`

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// ListQuery selects one page of processing logs.
type ListQuery struct {
	Page   int
	Limit  int
	Status model.LogStatus
}

// Normalize applies the paging defaults.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	return q
}

// Completion is the terminal state written when a batch finishes.
type Completion struct {
	Status         model.LogStatus
	ProcessedCount int
	ErrorCount     int
	Errors         []model.ItemError
	CompletedAt    time.Time
}

// Failure describes a batch that aborted. ID may be zero when no log row was created.
type Failure struct {
	ID         int64
	BatchID    string
	Source     string
	TotalItems int
	Message    string
	At         time.Time
}

// LogRepository stores processing logs.
type LogRepository struct{}

// NewLogRepository creates a new processing log repository.
func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

// Create inserts log and sets its ID.
func (r *LogRepository) Create(ctx context.Context, q Querier, log *model.ProcessingLog) error {
	errs, err := encodeErrors(log.Errors)
	if err != nil {
		return &model.StoreError{Op: "encode log errors", Err: err}
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = log.StartedAt
	}

	id, err := q.InsertContext(ctx,
		`INSERT INTO processing_logs (batch_id, source, status, total_items, processed_count, error_count,
			errors, error_message, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.BatchID, log.Source, string(log.Status), log.TotalItems, log.ProcessedCount, log.ErrorCount,
		errs, nullString(log.ErrorMessage), log.StartedAt, log.CompletedAt, log.CreatedAt,
	)
	if err != nil {
		return &model.StoreError{Op: "create processing log", Err: err}
	}
	log.ID = id
	return nil
}

// Finalize records the outcome of a batch on its log row.
func (r *LogRepository) Finalize(ctx context.Context, q Querier, id int64, c Completion) error {
	errs, err := encodeErrors(c.Errors)
	if err != nil {
		return &model.StoreError{Op: "encode log errors", Err: err}
	}

	res, err := q.ExecContext(ctx,
		`UPDATE processing_logs
		SET status = ?, processed_count = ?, error_count = ?, errors = ?, completed_at = ?
		WHERE id = ?`,
		string(c.Status), c.ProcessedCount, c.ErrorCount, errs, c.CompletedAt, id,
	)
	if err != nil {
		return &model.StoreError{Op: "finalize processing log", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &model.StoreError{Op: "finalize processing log", Err: fmt.Errorf("log %d: %w", id, model.ErrNotFound)}
	}
	return nil
}

// MarkFailed moves a still-processing log row to failed. When the row no
// longer exists (its transaction was rolled back), a failed row is inserted
// instead so the batch remains observable. It reports whether a row was inserted.
func (r *LogRepository) MarkFailed(ctx context.Context, q Querier, f Failure) (bool, error) {
	if f.ID > 0 {
		res, err := q.ExecContext(ctx,
			`UPDATE processing_logs SET status = ?, error_message = ?, completed_at = ?
			WHERE id = ? AND batch_id = ? AND status = ?`,
			string(model.StatusFailed), f.Message, f.At, f.ID, f.BatchID, string(model.StatusProcessing),
		)
		if err != nil {
			return false, &model.StoreError{Op: "mark log failed", Err: err}
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return false, nil
		}
	}

	log := &model.ProcessingLog{
		BatchID:      f.BatchID,
		Source:       f.Source,
		Status:       model.StatusFailed,
		TotalItems:   f.TotalItems,
		ErrorMessage: f.Message,
		StartedAt:    f.At,
		CompletedAt:  &f.At,
		CreatedAt:    f.At,
	}
	if err := r.Create(ctx, q, log); err != nil {
		return false, err
	}
	return true, nil
}

// MarkStale fails every processing log started before cutoff.
func (r *LogRepository) MarkStale(ctx context.Context, q Querier, cutoff time.Time, message string, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE processing_logs SET status = ?, error_message = ?, completed_at = ?
		WHERE status = ? AND started_at < ?`,
		string(model.StatusFailed), message, now, string(model.StatusProcessing), cutoff,
	)
	if err != nil {
		return 0, &model.StoreError{Op: "mark stale logs", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &model.StoreError{Op: "mark stale logs", Err: err}
	}
	return n, nil
}

// GetByBatchID returns the newest log for a batch.
func (r *LogRepository) GetByBatchID(ctx context.Context, q Querier, batchID string) (*model.ProcessingLog, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM processing_logs
		WHERE batch_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`, batchID)

	log, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", batchID, model.ErrNotFound)
	}
	if err != nil {
		return nil, &model.StoreError{Op: "get processing log", Err: err}
	}
	return log, nil
}

// List returns one page of logs, newest first.
func (r *LogRepository) List(ctx context.Context, q Querier, lq ListQuery) (*model.LogPage, error) {
	lq = lq.Normalize()

	where := ""
	var args []any
	if lq.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(lq.Status))
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM processing_logs`+where, args...).Scan(&total); err != nil {
		return nil, &model.StoreError{Op: "count processing logs", Err: err}
	}

	offset := (lq.Page - 1) * lq.Limit
	rows, err := q.QueryContext(ctx,
		`SELECT `+logColumns+` FROM processing_logs`+where+`
		ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, lq.Limit, offset)...)
	if err != nil {
		return nil, &model.StoreError{Op: "list processing logs", Err: err}
	}
	defer rows.Close()

	logs := []model.ProcessingLog{}
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, &model.StoreError{Op: "scan processing log", Err: err}
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list processing logs", Err: err}
	}

	return &model.LogPage{
		Logs:       logs,
		Total:      total,
		Page:       lq.Page,
		Limit:      lq.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(lq.Limit))),
	}, nil
}

// DeleteByBatchID removes every log row of a batch.
func (r *LogRepository) DeleteByBatchID(ctx context.Context, q Querier, batchID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM processing_logs WHERE batch_id = ?`, batchID)
	if err != nil {
		return 0, &model.StoreError{Op: "delete processing log", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &model.StoreError{Op: "delete processing log", Err: err}
	}
	if n == 0 {
		return 0, fmt.Errorf("batch %s: %w", batchID, model.ErrNotFound)
	}
	return n, nil
}

// Stats counts live logs by status and archived logs.
func (r *LogRepository) Stats(ctx context.Context, q Querier) (*model.LogStats, error) {
	stats := &model.LogStats{ByStatus: make(map[model.LogStatus]int)}

	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM processing_logs GROUP BY status`)
	if err != nil {
		return nil, &model.StoreError{Op: "count logs by status", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, &model.StoreError{Op: "count logs by status", Err: err}
		}
		stats.ByStatus[model.LogStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "count logs by status", Err: err}
	}

	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM processing_logs_archive`).Scan(&stats.Archived); err != nil {
		return nil, &model.StoreError{Op: "count archived logs", Err: err}
	}
	return stats, nil
}

func scanLog(s rowScanner) (*model.ProcessingLog, error) {
	var (
		log                         model.ProcessingLog
		status                      string
		errs, errMsg                sql.NullString
		started, completed, created nullTime
	)
	err := s.Scan(&log.ID, &log.BatchID, &log.Source, &status, &log.TotalItems, &log.ProcessedCount,
		&log.ErrorCount, &errs, &errMsg, &started, &completed, &created)
	if err != nil {
		return nil, err
	}
	log.Status = model.LogStatus(status)
	log.Errors = decodeErrors(errs)
	log.ErrorMessage = errMsg.String
	log.StartedAt = started.Time
	log.CompletedAt = completed.ptr()
	log.CreatedAt = created.Time
	return &log, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
