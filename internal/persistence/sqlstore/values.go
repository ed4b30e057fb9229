package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/KebabObama/school-reservation/internal/persistence"
)

// Timestamps are facility-local and timezone-naive. They are written as
// "YYYY-MM-DD HH:MM:SS" text so SQLite TEXT and MySQL DATETIME columns compare
// them the same way.

func formatDateTime(t time.Time) string {
	return t.Format(persistence.DateTimeLayout)
}

func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatDateTime(t)
	}
	return v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullDateTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDateTime(*t), Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(persistence.DateLayout), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

var scanLayouts = []string{
	persistence.DateTimeLayout,
	persistence.DateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// nullTime scans text, bytes, or driver-parsed times into a naive UTC value.
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
		n.Time, n.Valid = naive(v), true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range scanLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = naive(t), true
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognised time value %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// naive keeps the wall clock reading and drops the zone.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
