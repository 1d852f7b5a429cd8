package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// timestampFormats covers what SQLite hands back for TIMESTAMP columns and MAX() aggregates.
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04",
	"2006-01-02",
}

// nullTime scans TIMESTAMP values from either driver.
// pgx returns time.Time; modernc returns time.Time or text depending on the column.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (t *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case int64:
		t.Time, t.Valid = time.Unix(v, 0).UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *nullTime) parse(s string) error {
	if s == "" {
		t.Time, t.Valid = time.Time{}, false
		return nil
	}
	for _, layout := range timestampFormats {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time, t.Valid = time.Unix(unix, 0).UTC(), true
		return nil
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// jsonColumn scans TEXT (SQLite) and JSONB (Postgres) columns as raw JSON.
type jsonColumn json.RawMessage

func (j *jsonColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = jsonColumn(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	return nil
}

// raw returns the column as JSON, dropping values that are not valid JSON.
func (j jsonColumn) raw() json.RawMessage {
	if len(j) == 0 || !json.Valid(j) {
		return nil
	}
	return json.RawMessage(j)
}
