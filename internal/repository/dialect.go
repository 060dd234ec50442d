package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect identifies the SQL database behind a Store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// sqliteTimeLayout is fixed width so that text comparison orders chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported store driver %q", name)
}

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// arg converts a Go value into what the driver stores for the dialect.
func (d Dialect) arg(v any) any {
	switch t := v.(type) {
	case time.Time:
		return d.timeArg(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return d.timeArg(*t)
	case bool:
		if d == Postgres {
			return t
		}
		if t {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func (d Dialect) timeArg(t time.Time) any {
	t = t.UTC()
	if d == SQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

func (d Dialect) args(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = d.arg(v)
	}
	return out
}

// TimeParam is the placeholder for a timestamp used where the database cannot
// infer the parameter type, such as the select list of INSERT ... SELECT.
func (d Dialect) TimeParam() string {
	if d == Postgres {
		return "CAST(? AS TIMESTAMPTZ)"
	}
	return "?"
}

// returnsID reports whether inserts must use RETURNING instead of LastInsertId.
func (d Dialect) returnsID() bool {
	return d == Postgres
}

// types substituted into the shared DDL templates.
func (d Dialect) types() *strings.Replacer {
	switch d {
	case Postgres:
		return strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{time}}", "TIMESTAMPTZ",
			"{{float}}", "DOUBLE PRECISION",
		)
	case MySQL:
		return strings.NewReplacer(
			"{{id}}", "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"{{time}}", "DATETIME(6)",
			"{{float}}", "DOUBLE",
		)
	default:
		return strings.NewReplacer(
			"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{time}}", "TIMESTAMP",
			"{{float}}", "REAL",
		)
	}
}

type index struct {
	name    string
	columns string
}

type table struct {
	name    string
	columns string
	indexes []index
}

var tables = []table{
	{
		name: "system_records",
		columns: `
	id {{id}},
	serialnumber VARCHAR(100) NOT NULL,
	computername VARCHAR(255) NOT NULL DEFAULT '',
	manufacturer VARCHAR(255) NOT NULL DEFAULT '',
	model VARCHAR(255) NOT NULL DEFAULT '',
	systemsku VARCHAR(255) NOT NULL DEFAULT '',
	operatingsystem VARCHAR(255) NOT NULL DEFAULT '',
	cpu VARCHAR(255) NOT NULL DEFAULT '',
	resolution VARCHAR(100) NOT NULL DEFAULT '',
	graphicscard VARCHAR(255) NOT NULL DEFAULT '',
	touchscreen BOOLEAN NOT NULL DEFAULT FALSE,
	ram_gb {{float}} NOT NULL DEFAULT 0,
	disks TEXT,
	disks_gb {{float}} NOT NULL DEFAULT 0,
	design_capacity BIGINT NOT NULL DEFAULT 0,
	full_charge_capacity BIGINT NOT NULL DEFAULT 0,
	cycle_count BIGINT NOT NULL DEFAULT 0,
	battery_health {{float}} NOT NULL DEFAULT 0,
	outbound_status VARCHAR(50) NOT NULL DEFAULT 'pending',
	sync_status VARCHAR(50) NOT NULL DEFAULT 'pending',
	sync_version VARCHAR(20) NOT NULL DEFAULT '1.0',
	last_sync_time {{time}} NULL,
	data_source VARCHAR(50) NOT NULL DEFAULT '',
	validation_status VARCHAR(50) NOT NULL DEFAULT 'pending',
	validation_message TEXT,
	created_at {{time}} NOT NULL,
	started_at {{time}} NOT NULL,
	last_updated_at {{time}} NOT NULL,
	is_current BOOLEAN NOT NULL DEFAULT TRUE`,
		indexes: []index{
			{"idx_system_records_serialnumber", "serialnumber"},
			{"idx_system_records_current", "serialnumber, is_current"},
		},
	},
	{
		name: "processing_logs",
		columns: `
	id {{id}},
	batch_id VARCHAR(100) NOT NULL,
	source VARCHAR(50) NOT NULL DEFAULT '',
	status VARCHAR(32) NOT NULL,
	total_items INTEGER NOT NULL DEFAULT 0,
	processed_count INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	errors TEXT,
	error_message TEXT,
	started_at {{time}} NOT NULL,
	completed_at {{time}} NULL,
	created_at {{time}} NOT NULL`,
		indexes: []index{
			{"idx_processing_logs_batch", "batch_id"},
			{"idx_processing_logs_status", "status"},
			{"idx_processing_logs_started", "started_at"},
			{"idx_processing_logs_completed", "completed_at"},
		},
	},
	{
		name: "processing_logs_archive",
		columns: `
	id {{id}},
	original_id BIGINT NOT NULL,
	batch_id VARCHAR(100) NOT NULL,
	source VARCHAR(50) NOT NULL DEFAULT '',
	status VARCHAR(32) NOT NULL,
	total_items INTEGER NOT NULL DEFAULT 0,
	processed_count INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	errors TEXT,
	error_message TEXT,
	started_at {{time}} NOT NULL,
	completed_at {{time}} NULL,
	created_at {{time}} NOT NULL,
	archived_at {{time}} NOT NULL`,
		indexes: []index{
			{"idx_processing_logs_archive_original", "original_id"},
			{"idx_processing_logs_archive_batch", "batch_id"},
		},
	},
}

// schema returns the statements that create every table and index.
// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes are declared inline.
func (d Dialect) schema() []string {
	r := d.types()
	var stmts []string
	for _, t := range tables {
		cols := r.Replace(t.columns)
		if d == MySQL {
			for _, idx := range t.indexes {
				cols += fmt.Sprintf(",\n\tINDEX %s (%s)", idx.name, idx.columns)
			}
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n) ENGINE=InnoDB", t.name, cols))
			continue
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", t.name, cols))
		for _, idx := range t.indexes {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.name, t.name, idx.columns))
		}
	}
	return stmts
}
