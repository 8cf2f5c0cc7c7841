package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one raw wire row as delivered by the change stream or the
// fetch API: snake_case columns, decimals encoded as strings, timestamps
// as ISO-8601.
type Record map[string]json.RawMessage

// MalformedRecordError reports a required field that could not be coerced.
// The caller must drop and log the record; it never aborts sibling records.
type MalformedRecordError struct {
	Resource string
	Field    string
	Value    string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: field %q value %q", e.Resource, e.Field, e.Value)
}

func malformed(resource, field string, raw json.RawMessage) *MalformedRecordError {
	return &MalformedRecordError{Resource: resource, Field: field, Value: string(raw)}
}

// requireString fails when the field is missing, null, or not a string.
func requireString(resource string, rec Record, field string) (string, error) {
	raw, ok := rec[field]
	if !ok || string(raw) == "null" {
		return "", malformed(resource, field, raw)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed(resource, field, raw)
	}
	return s, nil
}

func optString(rec Record, field string) string {
	raw, ok := rec[field]
	if !ok || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// requireFloat coerces a string-encoded decimal (or a plain JSON number)
// into float64. Coercion failure fails the whole record.
func requireFloat(resource string, rec Record, field string) (float64, error) {
	raw, ok := rec[field]
	if !ok || string(raw) == "null" {
		return 0, malformed(resource, field, raw)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not a string: accept a bare number for providers that skip
		// the decimal-as-string convention.
		s = string(raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, malformed(resource, field, raw)
	}
	return d.InexactFloat64(), nil
}

// optFloat returns nil when the field is absent or null, and fails the
// record when a present value cannot be coerced.
func optFloat(resource string, rec Record, field string) (*float64, error) {
	raw, ok := rec[field]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	f, err := requireFloat(resource, rec, field)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func requireTime(resource string, rec Record, field string) (time.Time, error) {
	s, err := requireString(resource, rec, field)
	if err != nil {
		return time.Time{}, err
	}
	t, perr := parseWireTime(s)
	if perr != nil {
		return time.Time{}, malformed(resource, field, rec[field])
	}
	return t, nil
}

func optTime(rec Record, field string) *time.Time {
	s := optString(rec, field)
	if s == "" {
		return nil
	}
	t, err := parseWireTime(s)
	if err != nil {
		return nil
	}
	return &t
}

func parseWireTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// Postgres timestamps come through without a zone suffix.
	return time.Parse("2006-01-02T15:04:05.999999", s)
}

func optBool(rec Record, field string) bool {
	raw, ok := rec[field]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func optInt64(rec Record, field string) int64 {
	raw, ok := rec[field]
	if !ok || string(raw) == "null" {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.IntPart()
}
