package router

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord is matched by every validation failure from Append.
var ErrMalformedRecord = errors.New("malformed record")

// UnknownField is a key outside the channel set, with the closest known key
// when one is plausibly what the sender meant.
type UnknownField struct {
	Name       string
	Suggestion string
}

// MalformedRecordError lists why a record was rejected.
type MalformedRecordError struct {
	Missing    []string
	Unknown    []UnknownField
	NonNumeric []string
}

func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	b.WriteString(ErrMalformedRecord.Error())
	sep := ": "
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "%smissing %s", sep, strings.Join(e.Missing, ","))
		sep = "; "
	}
	if len(e.NonNumeric) > 0 {
		fmt.Fprintf(&b, "%snon-numeric %s", sep, strings.Join(e.NonNumeric, ","))
		sep = "; "
	}
	if len(e.Unknown) > 0 {
		parts := make([]string, 0, len(e.Unknown))
		for _, u := range e.Unknown {
			if u.Suggestion != "" {
				parts = append(parts, fmt.Sprintf("%s (did you mean %s?)", u.Name, u.Suggestion))
			} else {
				parts = append(parts, u.Name)
			}
		}
		fmt.Fprintf(&b, "%sunknown %s", sep, strings.Join(parts, ","))
	}
	return b.String()
}

// Is lets errors.Is(err, ErrMalformedRecord) match.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Reason returns a short label for counters: the first failing category.
func (e *MalformedRecordError) Reason() string {
	switch {
	case len(e.Missing) > 0:
		return "missing"
	case len(e.NonNumeric) > 0:
		return "non_numeric"
	case len(e.Unknown) > 0:
		return "unknown"
	default:
		return "other"
	}
}
