// Package export renders event lists in formats consumed by calendar clients.
package export

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/emersion/go-ical"

	"github.com/dgduncan/wheretogo"
)

const productID = "-//wheretogo//events//EN"

// WriteICal writes events to w as an iCalendar document with one VEVENT per
// event. Events whose start cannot be resolved are skipped. An event without
// an end is written without DTEND.
func WriteICal(w io.Writer, events []wheretogo.Event) error {
	return writeICal(w, events, time.Now)
}

func writeICal(w io.Writer, events []wheretogo.Event, now func() time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := now().UTC()

	for i, e := range events {
		start, err := e.StartTime()
		if err != nil {
			continue
		}

		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, uid(e, i))
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		ev.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		ev.Props.SetText(ical.PropSummary, e.Name)

		if end, ok, err := e.EndTime(); ok && err == nil {
			ev.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
		}

		if e.URL != "" {
			if u, err := url.Parse(e.URL); err == nil {
				ev.Props.SetURI(ical.PropURL, u)
			}
		}

		cal.Children = append(cal.Children, ev.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}

	return nil
}

func uid(e wheretogo.Event, i int) string {
	if e.ID != "" {
		return e.ID + "@wheretogo"
	}
	return fmt.Sprintf("event-%d@wheretogo", i)
}
