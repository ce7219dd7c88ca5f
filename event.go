package wheretogo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // named event timezones must resolve on hosts without a zoneinfo database
)

const (
	localDateLayout     = "2006-01-02"
	localDateTimeLayout = "2006-01-02T15:04:05"
)

var (
	errNoStart    = errors.New("event has no start date")
	errNoTimezone = errors.New("local date without timezone")
	errEmptyDate  = errors.New("neither dateTime nor localDate set")
)

// Event is a single event returned by a Source. Only the fields needed for
// filtering are decoded; the complete JSON object is kept in Raw and
// written back unchanged by MarshalJSON.
//
// Raw wins over the decoded fields when marshaling. Callers changing ID,
// Name, URL or Dates of a decoded event must clear Raw for the change to
// be written.
type Event struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Dates Dates  `json:"dates"`

	Raw json.RawMessage `json:"-"`
}

// Dates holds when an event takes place.
type Dates struct {
	Start    *DateSpec `json:"start,omitempty"`
	End      *DateSpec `json:"end,omitempty"`
	Timezone string    `json:"timezone,omitempty"` // IANA name applied to local dates
}

// DateSpec is either an absolute timestamp (DateTime) or a wall clock date
// (LocalDate, optionally LocalTime) to be read in Dates.Timezone.
type DateSpec struct {
	DateTime  string `json:"dateTime,omitempty"`
	LocalDate string `json:"localDate,omitempty"`
	LocalTime string `json:"localTime,omitempty"`
}

type eventFields Event

func (e *Event) UnmarshalJSON(b []byte) error {
	var f eventFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}

	*e = Event(f)
	e.Raw = append(json.RawMessage(nil), b...)

	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(eventFields(e))
}

// StartTime resolves when the event starts. An absolute dateTime wins over
// a local date, which is tried when dateTime is absent or does not parse.
// A local date needs a resolvable Dates.Timezone.
func (e Event) StartTime() (time.Time, error) {
	if e.Dates.Start == nil {
		return time.Time{}, errNoStart
	}
	return e.Dates.Start.resolve(e.Dates.Timezone)
}

// EndTime resolves when the event ends. ok is false when the event carries
// no end at all.
func (e Event) EndTime() (t time.Time, ok bool, err error) {
	if e.Dates.End == nil || (e.Dates.End.DateTime == "" && e.Dates.End.LocalDate == "") {
		return time.Time{}, false, nil
	}

	t, err = e.Dates.End.resolve(e.Dates.Timezone)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

func (d *DateSpec) resolve(tz string) (time.Time, error) {
	if d.DateTime != "" {
		t, err := ParseTime(d.DateTime)
		if err == nil || d.LocalDate == "" {
			return t, err
		}
	}

	if d.LocalDate == "" {
		return time.Time{}, errEmptyDate
	}

	if tz == "" {
		return time.Time{}, errNoTimezone
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("timezone %q: %w", tz, err)
	}

	if d.LocalTime == "" {
		t, err := time.ParseInLocation(localDateLayout, d.LocalDate, loc)
		if err != nil {
			return time.Time{}, &ParseError{Value: d.LocalDate, Err: err}
		}
		return t, nil
	}

	v := d.LocalDate + "T" + d.LocalTime
	t, err := time.ParseInLocation(localDateTimeLayout, v, loc)
	if err != nil {
		return time.Time{}, &ParseError{Value: v, Err: err}
	}
	return t, nil
}
