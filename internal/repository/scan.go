package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
)

var scanTimeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// nullTime scans timestamps whether the driver yields time.Time or text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (n *nullTime) parse(s string) error {
	for _, layout := range scanTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func encodeErrors(errs []model.ItemError) (string, error) {
	if errs == nil {
		errs = []model.ItemError{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeErrors(s sql.NullString) []model.ItemError {
	errs := []model.ItemError{}
	if s.Valid && s.String != "" {
		_ = json.Unmarshal([]byte(s.String), &errs)
	}
	return errs
}
