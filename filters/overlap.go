// Package filters holds wheretogo.Filter implementations.
package filters

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgduncan/wheretogo"
)

// Appointment is a busy interval as supplied by a caller. Start and End
// may be anything wheretogo.ParseTime accepts.
type Appointment struct {
	Start any
	End   any
}

// OverlapFilter drops events overlapping any of a fixed set of
// appointments. It is immutable after construction and safe for
// concurrent use.
type OverlapFilter struct {
	appointments []wheretogo.Interval
	logger       *slog.Logger
}

// NewOverlapFilter parses every appointment up front and fails on the
// first endpoint that does not resolve to a timestamp.
func NewOverlapFilter(appointments ...Appointment) (*OverlapFilter, error) {
	parsed := make([]wheretogo.Interval, 0, len(appointments))
	for i, a := range appointments {
		iv, err := wheretogo.NewInterval(a.Start, a.End)
		if err != nil {
			return nil, fmt.Errorf("appointment %d: %w", i, err)
		}
		parsed = append(parsed, iv)
	}

	return &OverlapFilter{
		appointments: parsed,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// WithLogger returns a copy of f reporting events whose dates cannot be
// resolved to logger at debug level.
func (f *OverlapFilter) WithLogger(logger *slog.Logger) *OverlapFilter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OverlapFilter{appointments: f.appointments, logger: logger}
}

// Appointments returns the parsed appointments.
func (f *OverlapFilter) Appointments() []wheretogo.Interval {
	return append([]wheretogo.Interval(nil), f.appointments...)
}

// Apply returns the events that overlap no appointment, in their original
// order. The input slice is not modified.
func (f *OverlapFilter) Apply(events []wheretogo.Event, _ wheretogo.Query) []wheretogo.Event {
	kept := make([]wheretogo.Event, 0, len(events))
	for _, e := range events {
		if f.Keep(e) {
			kept = append(kept, e)
		}
	}
	return kept
}

// Keep reports whether e is clear of every appointment. An event whose
// dates cannot be resolved is kept.
func (f *OverlapFilter) Keep(e wheretogo.Event) bool {
	start, end, hasEnd, err := eventSpan(e)
	if err != nil {
		f.logger.Debug("keeping event with unresolvable dates", "name", e.Name, "error", err)
		return true
	}

	for _, a := range f.appointments {
		if !isClear(start, end, hasEnd, a) {
			return false
		}
	}
	return true
}

// eventSpan resolves the event's start and, when the event carries one,
// its end.
func eventSpan(e wheretogo.Event) (start, end time.Time, hasEnd bool, err error) {
	start, err = e.StartTime()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	end, hasEnd, err = e.EndTime()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	return start, end, hasEnd, nil
}

// isClear reports whether the event lies entirely after or entirely before
// a. Touching endpoints do not overlap. An event without an end never
// counts as ending before a starts.
func isClear(start, end time.Time, hasEnd bool, a wheretogo.Interval) bool {
	if !start.Before(a.End) {
		return true
	}
	return hasEnd && !end.After(a.Start)
}
