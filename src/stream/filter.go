package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"tradedeck/src/mapper"
)

// Filter is an equality predicate over one column, written on the wire as
// "<column>=eq.<value>". The zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses the "<column>=eq.<value>" syntax. An empty string is
// the match-all filter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: expected <column>=eq.<value>", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q: only eq. predicates are supported", s)
	}
	return Filter{Column: column, Value: value}, nil
}

// Matches compares the filtered column of a raw record, textually, the way
// the provider does server-side.
func (f Filter) Matches(rec mapper.Record) bool {
	if f.Column == "" {
		return true
	}
	raw, ok := rec[f.Column]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return s == f.Value
}

func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}
