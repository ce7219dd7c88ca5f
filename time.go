package wheretogo

import (
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// canonicalTimeFormat is the textual form used for timestamps inside cache keys.
const canonicalTimeFormat = time.RFC3339Nano

var (
	errUnsupportedType = errors.New("unsupported type")
	errEmptyString     = errors.New("empty string")
)

// ParseTime resolves v to a timestamp. v may be a time.Time, a *time.Time or
// a date string in any layout dateparse understands; strings without an
// offset are read as UTC.
func ParseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, &ParseError{Value: v, Err: errors.New("nil time")}
		}
		return *t, nil
	case string:
		if t == "" {
			return time.Time{}, &ParseError{Value: v, Err: errEmptyString}
		}
		parsed, err := dateparse.ParseIn(t, time.UTC)
		if err != nil {
			return time.Time{}, &ParseError{Value: v, Err: err}
		}
		return parsed, nil
	default:
		return time.Time{}, &ParseError{Value: v, Err: fmt.Errorf("%w %T", errUnsupportedType, v)}
	}
}

// Interval is a span of time between Start and End. Start <= End is
// expected but not enforced.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an Interval from two values accepted by ParseTime.
func NewInterval(start, end any) (Interval, error) {
	s, err := ParseTime(start)
	if err != nil {
		return Interval{}, err
	}

	e, err := ParseTime(end)
	if err != nil {
		return Interval{}, err
	}

	return Interval{Start: s, End: e}, nil
}

func formatCanonical(t time.Time) string {
	return t.UTC().Format(canonicalTimeFormat)
}
