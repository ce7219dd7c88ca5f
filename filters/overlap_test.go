package filters_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgduncan/wheretogo"
	"github.com/dgduncan/wheretogo/filters"
)

var _ wheretogo.Filter = (*filters.OverlapFilter)(nil)

var appointments = []filters.Appointment{
	{Start: "2019-05-16T12:00:00Z", End: "2019-05-16T14:00:00Z"},
	{Start: "2019-05-17T19:00:00Z", End: "2019-05-17T21:00:00Z"},
}

func event(name, start, end string) wheretogo.Event {
	e := wheretogo.Event{Name: name, Dates: wheretogo.Dates{Start: &wheretogo.DateSpec{DateTime: start}}}
	if end != "" {
		e.Dates.End = &wheretogo.DateSpec{DateTime: end}
	}
	return e
}

func names(events []wheretogo.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Name)
	}
	return out
}

func TestOverlapFilterAppointments(t *testing.T) {
	events := []wheretogo.Event{
		event("EventA", "2019-05-16T11:30:00Z", "2019-05-16T13:30:00Z"), // ends inside the first appointment
		event("EventB", "2019-05-16T13:00:00Z", "2019-05-16T14:30:00Z"), // starts inside the first appointment
		event("EventC", "2019-05-16T14:10:00Z", "2019-05-16T14:30:00Z"),
		event("EventD", "2019-05-17T19:30:00Z", "2019-05-17T20:00:00Z"), // inside the last appointment
	}

	f, err := filters.NewOverlapFilter(appointments...)
	require.NoError(t, err)

	got := f.Apply(events, nil)

	assert.Equal(t, []string{"EventC"}, names(got))
	assert.Len(t, events, 4)
}

func TestOverlapFilterFullCoverage(t *testing.T) {
	f, err := filters.NewOverlapFilter(filters.Appointment{
		Start: time.Date(2019, 5, 22, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2019, 5, 23, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	events := []wheretogo.Event{
		event("Morning", "2019-05-22T08:00:00Z", "2019-05-22T10:00:00Z"),
		event("Evening", "2019-05-22T19:00:00Z", "2019-05-22T23:00:00Z"),
		event("Open end", "2019-05-22T21:00:00Z", ""),
	}

	assert.Empty(t, f.Apply(events, nil))
}

func TestOverlapFilterKeep(t *testing.T) {
	f, err := filters.NewOverlapFilter(appointments[0])
	require.NoError(t, err)

	tests := []struct {
		name  string
		event wheretogo.Event
		want  bool
	}{
		{
			name:  "ends exactly when appointment starts",
			event: event("e", "2019-05-16T11:00:00Z", "2019-05-16T12:00:00Z"),
			want:  true,
		},
		{
			name:  "starts exactly when appointment ends",
			event: event("e", "2019-05-16T14:00:00Z", "2019-05-16T15:00:00Z"),
			want:  true,
		},
		{
			name:  "one second into the appointment",
			event: event("e", "2019-05-16T11:00:00Z", "2019-05-16T12:00:01Z"),
			want:  false,
		},
		{
			name:  "spans the appointment",
			event: event("e", "2019-05-16T11:00:00Z", "2019-05-16T15:00:00Z"),
			want:  false,
		},
		{
			name:  "without end inside the appointment",
			event: event("e", "2019-05-16T13:00:00Z", ""),
			want:  false,
		},
		{
			name:  "without end before the appointment",
			event: event("e", "2019-05-16T10:00:00Z", ""),
			want:  false,
		},
		{
			name:  "without end exactly at appointment end",
			event: event("e", "2019-05-16T14:00:00Z", ""),
			want:  true,
		},
		{
			name:  "without end after the appointment",
			event: event("e", "2019-05-16T16:00:00Z", ""),
			want:  true,
		},
		{
			name:  "offset date time is compared in absolute time",
			event: event("e", "2019-05-16T15:30:00+02:00", "2019-05-16T16:30:00+02:00"),
			want:  false,
		},
		{
			name:  "no start is kept",
			event: wheretogo.Event{Name: "e"},
			want:  true,
		},
		{
			name:  "malformed start is kept",
			event: event("e", "not a date", "2019-05-16T13:00:00Z"),
			want:  true,
		},
		{
			name:  "malformed end is kept",
			event: event("e", "2019-05-16T13:00:00Z", "not a date"),
			want:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Keep(tt.event))
		})
	}
}

func TestOverlapFilterTimezoneFallback(t *testing.T) {
	f, err := filters.NewOverlapFilter(appointments[0])
	require.NoError(t, err)

	local := func(tz, date, clock string) wheretogo.Event {
		return wheretogo.Event{
			Name: "local",
			Dates: wheretogo.Dates{
				Start:    &wheretogo.DateSpec{LocalDate: date, LocalTime: clock},
				Timezone: tz,
			},
		}
	}

	tests := []struct {
		name  string
		event wheretogo.Event
		want  bool
	}{
		{
			// 15:00 CEST is 13:00 UTC
			name:  "berlin local time inside the appointment",
			event: local("Europe/Berlin", "2019-05-16", "15:00:00"),
			want:  false,
		},
		{
			// 12:00 CEST is 10:00 UTC
			name:  "berlin local time before the appointment",
			event: local("Europe/Berlin", "2019-05-16", "12:00:00"),
			want:  true,
		},
		{
			// 06:00 PDT is 13:00 UTC
			name:  "los angeles local time inside the appointment",
			event: local("America/Los_Angeles", "2019-05-16", "06:00:00"),
			want:  false,
		},
		{
			name:  "unknown timezone is kept",
			event: local("Mars/Olympus_Mons", "2019-05-16", "13:00:00"),
			want:  true,
		},
		{
			name:  "missing timezone is kept",
			event: local("", "2019-05-16", "13:00:00"),
			want:  true,
		},
		{
			name: "date time wins over local date",
			event: wheretogo.Event{Dates: wheretogo.Dates{
				Start:    &wheretogo.DateSpec{DateTime: "2019-05-16T13:00:00Z", LocalDate: "2019-05-20", LocalTime: "13:00:00"},
				Timezone: "Europe/Berlin",
			}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Keep(tt.event))
		})
	}
}

func TestNewOverlapFilterParseError(t *testing.T) {
	_, err := filters.NewOverlapFilter(
		appointments[0],
		filters.Appointment{Start: "2019-05-16T12:00:00Z", End: "definitely not a date"},
	)

	var pe *wheretogo.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "definitely not a date", pe.Value)
	assert.Contains(t, err.Error(), "appointment 1")
}

func TestOverlapFilterOpenEndedEvents(t *testing.T) {
	f, err := filters.NewOverlapFilter(appointments...)
	require.NoError(t, err)

	events := []wheretogo.Event{
		event("Morning", "2019-05-16T10:00:00Z", ""),   // no end, before the first appointment
		event("Afternoon", "2019-05-16T15:00:00Z", ""), // no end, between the appointments
		event("Late", "2019-05-17T22:00:00Z", ""),      // no end, after every appointment
	}

	assert.Equal(t, []string{"Late"}, names(f.Apply(events, nil)))
}

func TestOverlapFilterNoAppointments(t *testing.T) {
	f, err := filters.NewOverlapFilter()
	require.NoError(t, err)

	events := []wheretogo.Event{
		event("EventA", "2019-05-16T11:30:00Z", "2019-05-16T13:30:00Z"),
		{Name: "no dates"},
	}

	assert.Equal(t, []string{"EventA", "no dates"}, names(f.Apply(events, nil)))
}

func TestOverlapFilterAppointmentsAreCopied(t *testing.T) {
	f, err := filters.NewOverlapFilter(appointments...)
	require.NoError(t, err)

	got := f.Appointments()
	got[0].Start = time.Time{}

	assert.True(t, f.Appointments()[0].Start.Equal(time.Date(2019, 5, 16, 12, 0, 0, 0, time.UTC)))
}
