/*
Package ics renders iCalendar feeds for crews and customers.

FEEDS:
  PlacementFeed  one all-day event on each placement day and one on each
                 removal day, located at the placement site
  HolidayFeed    annual holidays as one recurring event (RRULE), special
                 holidays as individual dates

  Skipped placements appear once with STATUS:CANCELLED so subscribed
  calendars drop the crew visit.

SEE ALSO:
  - schedule/calendar.go: AnnualRRule
*/
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/injoimydesign/flag-community/schedule"
)

const productID = "-//flag-community//placements//EN"

// PlacementEntry is a placement with the display details the feed needs.
type PlacementEntry struct {
	Placement    schedule.FlagPlacement
	HolidayName  string
	CustomerName string
	Address      string
}

// PlacementFeed renders entries as a calendar named name.
func PlacementFeed(name string, entries []PlacementEntry, stamp time.Time) string {
	cal := newCalendar(name)
	for _, e := range entries {
		p := e.Placement
		holiday := e.HolidayName
		if holiday == "" {
			holiday = string(p.HolidayID)
		}

		place := cal.AddEvent(fmt.Sprintf("%s-place@flag-community", p.ID))
		allDay(place, p.PlacementDate, stamp)
		place.SetSummary(fmt.Sprintf("Place flags: %s (%s)", e.CustomerName, holiday))
		place.SetLocation(e.Address)
		place.SetDescription(description(p))
		place.SetStatus(eventStatus(p.Status))

		if p.Status == schedule.StatusSkipped {
			continue
		}
		remove := cal.AddEvent(fmt.Sprintf("%s-remove@flag-community", p.ID))
		allDay(remove, p.RemovalDate, stamp)
		remove.SetSummary(fmt.Sprintf("Remove flags: %s (%s)", e.CustomerName, holiday))
		remove.SetLocation(e.Address)
		remove.SetDescription(description(p))
		remove.SetStatus(ical.ObjectStatusConfirmed)
	}
	return cal.Serialize()
}

// HolidayFeed renders holidays from fromYear onward.
func HolidayFeed(holidays []schedule.Holiday, fromYear int, stamp time.Time) (string, error) {
	cal := newCalendar("Flag holidays")
	for _, h := range holidays {
		if !h.Active {
			continue
		}
		switch h.Recurrence.Kind() {
		case schedule.RecurrenceAnnual:
			first, _ := schedule.ResolveDate(h, fromYear)
			rr, err := schedule.AnnualRRule(h.Recurrence, first)
			if err != nil {
				return "", fmt.Errorf("holiday %s: %w", h.ID, err)
			}
			ev := cal.AddEvent(fmt.Sprintf("%s@flag-community", h.Slug))
			allDay(ev, first, stamp)
			ev.SetSummary(h.Name)
			ev.SetDescription(windowDescription(h))
			ev.AddRrule(rr.OrigOptions.RRuleString())

		case schedule.RecurrenceSpecial:
			special, _ := h.Recurrence.(schedule.SpecialDates)
			for _, sd := range special.Dates {
				if sd.Year < fromYear {
					continue
				}
				ev := cal.AddEvent(fmt.Sprintf("%s-%d@flag-community", h.Slug, sd.Year))
				allDay(ev, sd.Date, stamp)
				ev.SetSummary(h.Name)
				ev.SetDescription(windowDescription(h))
			}
		}
	}
	return cal.Serialize(), nil
}

func newCalendar(name string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)
	return cal
}

func allDay(ev *ical.VEvent, d schedule.Date, stamp time.Time) {
	ev.SetDtStampTime(stamp.UTC())
	ev.SetAllDayStartAt(d.Time())
	ev.SetAllDayEndAt(d.AddDays(1).Time())
}

func eventStatus(s schedule.PlacementStatus) ical.ObjectStatus {
	switch s {
	case schedule.StatusSkipped:
		return ical.ObjectStatusCancelled
	case schedule.StatusScheduled:
		return ical.ObjectStatusTentative
	}
	return ical.ObjectStatusConfirmed
}

func description(p schedule.FlagPlacement) string {
	desc := fmt.Sprintf("Status: %s\nProduct: %s x%d\nUp: %s\nDown: %s",
		p.Status, p.ProductID, p.Quantity, p.PlacementDate, p.RemovalDate)
	if p.SkipReason != "" {
		desc += "\nSkipped: " + p.SkipReason
	}
	return desc
}

func windowDescription(h schedule.Holiday) string {
	return fmt.Sprintf("Flags go up %d day(s) before and come down %d day(s) after.",
		h.PlacementDaysBefore, h.RemovalDaysAfter)
}
