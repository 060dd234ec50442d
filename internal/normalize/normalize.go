// Package normalize turns a raw submitted item into a SystemRecord.
//
// Every field's default and parsing rule is listed in one table so the
// behaviour for absent or malformed values is visible in one place.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ChrisHK/label-printer/internal/model"
)

// ErrMissingSerial is the message recorded for items without a serial number.
const ErrMissingSerial = "Missing serial number"

const (
	DefaultStatus      = "pending"
	DefaultSyncVersion = "1.0"
)

type kind int

const (
	kindString kind = iota
	kindBool
	kindFloat
	kindInt
	kindTime
	kindBlob
)

// field describes one column: how to parse it and where to put it.
type field struct {
	name string
	kind kind
	// def is the string default for kindString fields; other kinds default to their zero value
	// (or the ingestion time for kindTime).
	def string
	set func(r *model.SystemRecord, v any)
}

// fields is the default table. data_source is filled separately from the batch source.
var fields = []field{
	{name: "computername", kind: kindString, set: func(r *model.SystemRecord, v any) { r.ComputerName = v.(string) }},
	{name: "manufacturer", kind: kindString, set: func(r *model.SystemRecord, v any) { r.Manufacturer = v.(string) }},
	{name: "model", kind: kindString, set: func(r *model.SystemRecord, v any) { r.Model = v.(string) }},
	{name: "systemsku", kind: kindString, set: func(r *model.SystemRecord, v any) { r.SystemSKU = v.(string) }},
	{name: "operatingsystem", kind: kindString, set: func(r *model.SystemRecord, v any) { r.OperatingSystem = v.(string) }},
	{name: "cpu", kind: kindString, set: func(r *model.SystemRecord, v any) { r.CPU = v.(string) }},
	{name: "resolution", kind: kindString, set: func(r *model.SystemRecord, v any) { r.Resolution = v.(string) }},
	{name: "graphicscard", kind: kindString, set: func(r *model.SystemRecord, v any) { r.GraphicsCard = v.(string) }},
	{name: "validation_message", kind: kindString, set: func(r *model.SystemRecord, v any) { r.ValidationMessage = v.(string) }},
	{name: "disks", kind: kindBlob, set: func(r *model.SystemRecord, v any) { r.Disks = v.(string) }},
	{name: "touchscreen", kind: kindBool, set: func(r *model.SystemRecord, v any) { r.Touchscreen = v.(bool) }},
	{name: "ram_gb", kind: kindFloat, set: func(r *model.SystemRecord, v any) { r.RAMGB = v.(float64) }},
	{name: "disks_gb", kind: kindFloat, set: func(r *model.SystemRecord, v any) { r.DisksGB = v.(float64) }},
	{name: "battery_health", kind: kindFloat, set: func(r *model.SystemRecord, v any) { r.BatteryHealth = v.(float64) }},
	{name: "design_capacity", kind: kindInt, set: func(r *model.SystemRecord, v any) { r.DesignCapacity = v.(int64) }},
	{name: "full_charge_capacity", kind: kindInt, set: func(r *model.SystemRecord, v any) { r.FullChargeCapacity = v.(int64) }},
	{name: "cycle_count", kind: kindInt, set: func(r *model.SystemRecord, v any) { r.CycleCount = v.(int64) }},
	{name: "outbound_status", kind: kindString, def: DefaultStatus, set: func(r *model.SystemRecord, v any) { r.OutboundStatus = v.(string) }},
	{name: "sync_status", kind: kindString, def: DefaultStatus, set: func(r *model.SystemRecord, v any) { r.SyncStatus = v.(string) }},
	{name: "validation_status", kind: kindString, def: DefaultStatus, set: func(r *model.SystemRecord, v any) { r.ValidationStatus = v.(string) }},
	{name: "sync_version", kind: kindString, def: DefaultSyncVersion, set: func(r *model.SystemRecord, v any) { r.SyncVersion = v.(string) }},
	{name: "created_at", kind: kindTime, set: func(r *model.SystemRecord, v any) { r.CreatedAt = v.(time.Time) }},
	{name: "started_at", kind: kindTime, set: func(r *model.SystemRecord, v any) { r.StartedAt = v.(time.Time) }},
	{name: "last_updated_at", kind: kindTime, set: func(r *model.SystemRecord, v any) { r.LastUpdatedAt = v.(time.Time) }},
}

// Item normalizes raw into a record ready to be versioned. It is pure: the
// same input, source and ingestion time always produce the same record.
// The only failure is a missing serial number.
func Item(raw model.RawItem, source string, ingestedAt time.Time) (*model.SystemRecord, error) {
	serial, _ := model.Text(raw["serialnumber"])
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, &model.ItemProcessingError{Message: ErrMissingSerial}
	}

	rec := &model.SystemRecord{SerialNumber: serial, IsCurrent: true}
	ingestedAt = ingestedAt.UTC()

	for _, f := range fields {
		v := raw[f.name]
		switch f.kind {
		case kindString:
			s, ok := model.Text(v)
			if !ok || s == "" {
				s = f.def
			}
			f.set(rec, s)
		case kindBlob:
			f.set(rec, blob(v))
		case kindBool:
			f.set(rec, Bool(v))
		case kindFloat:
			f.set(rec, Float(v))
		case kindInt:
			f.set(rec, Int(v))
		case kindTime:
			t, ok := Time(v)
			if !ok {
				t = ingestedAt
			}
			f.set(rec, t)
		}
	}

	rec.DataSource, _ = model.Text(raw["data_source"])
	if rec.DataSource == "" {
		rec.DataSource = source
	}
	return rec, nil
}

// Bool reads truthy values: booleans, non-zero numbers and yes/true/y/1 strings.
func Bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	}
	return false
}

var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// Float parses a number or the leading numeric part of a string ("16GB" is 16).
// Anything unparsable is 0.
func Float(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		return Float(t.String())
	case string:
		m := floatPrefix.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		var err error
		if f, err = strconv.ParseFloat(m, 64); err != nil {
			return 0
		}
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int parses an integer, truncating fractions, or the leading integer part of a string.
func Int(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return truncate(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return truncate(f)
	case string:
		m := intPrefix.FindString(strings.TrimSpace(t))
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// truncate drops the fraction of f. Values outside the int64 range are 0.
func truncate(f float64) int64 {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Time parses the timestamp forms clients send. Zone-less values are UTC.
// Numbers are epoch milliseconds. ok is false when nothing matched.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(f)
	case float64:
		return fromMillis(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				parsed = parsed.UTC()
				return parsed, parsed.Year() >= 1 && parsed.Year() <= 9999
			}
		}
	}
	return time.Time{}, false
}

// Epoch milliseconds of 0001-01-01 and 9999-12-31T23:59:59.999Z, the range
// every store can hold as a timestamp.
const (
	minEpochMillis = -62135596800000
	maxEpochMillis = 253402300799999
)

func fromMillis(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f < minEpochMillis || f > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

// blob stores structured disk descriptions as compact JSON text.
func blob(v any) string {
	switch v.(type) {
	case []any, map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	s, _ := model.Text(v)
	return s
}
