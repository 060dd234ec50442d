package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/ChrisHK/label-printer/internal/model"
)

const recordColumns = `serialnumber, computername, manufacturer, model, systemsku, operatingsystem,
	cpu, resolution, graphicscard, touchscreen, ram_gb, disks, disks_gb, design_capacity,
	full_charge_capacity, cycle_count, battery_health, outbound_status, sync_status, sync_version,
	last_sync_time, data_source, validation_status, validation_message, created_at, started_at,
	last_updated_at, is_current`

// syncStatusChunk bounds the IN list of one sync-status query.
const syncStatusChunk = 500

// RecordRepository versions system records by serial number.
type RecordRepository struct{}

// NewRecordRepository creates a new record repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// Apply supersedes the current row for rec's serial number and inserts rec
// as the new current row. q must be a transaction.
func (r *RecordRepository) Apply(ctx context.Context, q Querier, rec *model.SystemRecord) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE system_records SET is_current = ? WHERE serialnumber = ? AND is_current = ?`,
		false, rec.SerialNumber, true,
	); err != nil {
		return &model.StoreError{Op: "supersede record", Err: err}
	}

	id, err := q.InsertContext(ctx,
		`INSERT INTO system_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SerialNumber, rec.ComputerName, rec.Manufacturer, rec.Model, rec.SystemSKU, rec.OperatingSystem,
		rec.CPU, rec.Resolution, rec.GraphicsCard, rec.Touchscreen, rec.RAMGB, rec.Disks, rec.DisksGB, rec.DesignCapacity,
		rec.FullChargeCapacity, rec.CycleCount, rec.BatteryHealth, rec.OutboundStatus, rec.SyncStatus, rec.SyncVersion,
		rec.LastSyncTime, rec.DataSource, rec.ValidationStatus, rec.ValidationMessage, rec.CreatedAt, rec.StartedAt,
		rec.LastUpdatedAt, true,
	)
	if err != nil {
		return &model.StoreError{Op: "insert record", Err: err}
	}

	rec.ID = id
	rec.IsCurrent = true
	return nil
}

// Current returns the current row for a serial number.
func (r *RecordRepository) Current(ctx context.Context, q Querier, serial string) (*model.SystemRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, `+recordColumns+` FROM system_records
		WHERE serialnumber = ? AND is_current = ?
		ORDER BY id DESC LIMIT 1`, serial, true)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, &model.StoreError{Op: "get current record", Err: err}
	}
	return rec, nil
}

// History returns every version of a serial number, newest first.
func (r *RecordRepository) History(ctx context.Context, q Querier, serial string) ([]model.SystemRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, `+recordColumns+` FROM system_records
		WHERE serialnumber = ? ORDER BY id DESC`, serial)
	if err != nil {
		return nil, &model.StoreError{Op: "list record history", Err: err}
	}
	defer rows.Close()

	var out []model.SystemRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &model.StoreError{Op: "scan record", Err: err}
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list record history", Err: err}
	}
	return out, nil
}

// SyncStatuses returns the sync state of each known serial number. The
// current row wins; without one, the most recently created row is used.
// Unknown serial numbers are absent from the result.
func (r *RecordRepository) SyncStatuses(ctx context.Context, q Querier, serials []string) (map[string]model.SyncStatus, error) {
	out := make(map[string]model.SyncStatus)
	unique := dedupe(serials)

	for start := 0; start < len(unique); start += syncStatusChunk {
		end := min(start+syncStatusChunk, len(unique))
		chunk := unique[start:end]

		args := make([]any, len(chunk))
		for i, s := range chunk {
			args[i] = s
		}

		rows, err := q.QueryContext(ctx,
			`SELECT serialnumber, sync_status, sync_version, last_sync_time FROM system_records
			WHERE serialnumber IN (`+placeholders(len(chunk))+`)
			ORDER BY serialnumber, is_current DESC, created_at DESC, id DESC`, args...)
		if err != nil {
			return nil, &model.StoreError{Op: "query sync status", Err: err}
		}

		for rows.Next() {
			var (
				serial string
				st     model.SyncStatus
				last   nullTime
			)
			if err := rows.Scan(&serial, &st.SyncStatus, &st.SyncVersion, &last); err != nil {
				rows.Close()
				return nil, &model.StoreError{Op: "scan sync status", Err: err}
			}
			if _, seen := out[serial]; seen {
				continue
			}
			st.LastSyncTime = last.ptr()
			out[serial] = st
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, &model.StoreError{Op: "query sync status", Err: err}
		}
	}
	return out, nil
}

// Counts returns the number of stored rows and of current rows.
func (r *RecordRepository) Counts(ctx context.Context, q Querier) (total, current int, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_current = ? THEN 1 ELSE 0 END), 0) FROM system_records`, true,
	).Scan(&total, &current)
	if err != nil {
		return 0, 0, &model.StoreError{Op: "count records", Err: err}
	}
	return total, current, nil
}

func scanRecord(s rowScanner) (*model.SystemRecord, error) {
	var (
		rec                             model.SystemRecord
		disks, validationMessage        sql.NullString
		lastSync, created, started, upd nullTime
	)
	err := s.Scan(&rec.ID,
		&rec.SerialNumber, &rec.ComputerName, &rec.Manufacturer, &rec.Model, &rec.SystemSKU, &rec.OperatingSystem,
		&rec.CPU, &rec.Resolution, &rec.GraphicsCard, &rec.Touchscreen, &rec.RAMGB, &disks, &rec.DisksGB, &rec.DesignCapacity,
		&rec.FullChargeCapacity, &rec.CycleCount, &rec.BatteryHealth, &rec.OutboundStatus, &rec.SyncStatus, &rec.SyncVersion,
		&lastSync, &rec.DataSource, &rec.ValidationStatus, &validationMessage, &created, &started,
		&upd, &rec.IsCurrent,
	)
	if err != nil {
		return nil, err
	}
	rec.Disks = disks.String
	rec.ValidationMessage = validationMessage.String
	rec.LastSyncTime = lastSync.ptr()
	rec.CreatedAt = created.Time
	rec.StartedAt = started.Time
	rec.LastUpdatedAt = upd.Time
	return &rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
