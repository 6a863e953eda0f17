package interchange

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/roach88/kindred/internal/record"
)

const (
	prodID    = "-//kindred//holidays//EN"
	uidDomain = "kindred"
)

// emptyCalendar is written when there are no holidays; an encoded calendar
// needs at least one component.
const emptyCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + prodID + "\r\nEND:VCALENDAR\r\n"

// ExportHolidays writes holidays as an iCalendar feed of all-day events.
// Holidays without a year recur yearly. now stamps every event.
func ExportHolidays(w io.Writer, holidays []*record.Holiday, now time.Time) error {
	if len(holidays) == 0 {
		_, err := io.WriteString(w, emptyCalendar)
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	for _, h := range holidays {
		cal.Children = append(cal.Children, holidayEvent(h, now).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode holidays: %w", err)
	}
	return nil
}

func holidayEvent(h *record.Holiday, now time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", h.ID, uidDomain))
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetText(ical.PropSummary, h.Title)

	start := ical.NewProp(ical.PropDateTimeStart)
	start.SetDate(time.Date(h.Date.Year(), h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC))
	event.Props.Set(start)

	if h.Type != "" {
		event.Props.SetText(ical.PropCategories, h.Type)
	}
	if h.Year == 0 {
		// Set manually to avoid a VALUE=TEXT parameter.
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = "FREQ=YEARLY"
		event.Props.Set(rule)
	}
	return event
}
