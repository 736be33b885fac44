package storage

import (
	"database/sql"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Timestamps are written as text so SQLite and Postgres accept the same argument.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	DateLayout,
}

// FormatTime renders t for storage in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NullTime returns nil for a nil time, otherwise the storage text.
func NullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

// NullDate returns nil for a nil date, otherwise YYYY-MM-DD.
func NullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}

// NullString returns nil for a nil string.
func NullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// NullFloat returns nil for a nil number.
func NullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// ParseTime reads a stored timestamp or date. Unparseable or NULL values yield nil.
func ParseTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	raw := strings.TrimSpace(ns.String)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// TimeOrZero is ParseTime for NOT NULL columns.
func TimeOrZero(ns sql.NullString) time.Time {
	if t := ParseTime(ns); t != nil {
		return *t
	}
	return time.Time{}
}

// StringPtr returns nil for NULL, otherwise a pointer to the value.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// FloatPtr returns nil for NULL, otherwise a pointer to the value.
func FloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
