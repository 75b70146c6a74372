/*
calendar.go - Holiday Calendar Resolver

PURPOSE:
  Given a holiday definition and a target year, resolves the concrete calendar
  date of the holiday in that year, or reports that it does not occur.

RULES:
  FixedDate:    same month/day every year. Feb 29 falls on Mar 1 in non-leap years
                so an annual rule always yields a date.
  NthWeekday:   Nth (1-4) or last weekday of a month, e.g. Memorial Day is the
                last Monday of May, Presidents' Day the third Monday of February.
  SpecialDates: explicit {year, date} list; absent years do not occur.

  Resolution is plain date arithmetic: deterministic, no external state and no
  range restriction on the year.

RRULE:
  Annual rules can also be expressed as RFC 5545 recurrence rules (rrule-go).
  The iCalendar feed publishes them that way; resolution does not depend on it.

SEE ALSO:
  - window.go: Turns the resolved date into placement/removal dates
  - ics/feed.go: Publishes holidays with RRULE
*/
package schedule

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"
)

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveDate returns the holiday's date in year. ok is false when the holiday
// does not occur that year (only possible for special recurrences).
func ResolveDate(h Holiday, year int) (Date, bool) {
	return ResolveRecurrence(h.Recurrence, year)
}

// ResolveRecurrence is ResolveDate for a bare recurrence.
func ResolveRecurrence(r Recurrence, year int) (Date, bool) {
	switch rule := r.(type) {
	case FixedDate:
		return NewDate(year, rule.Month, rule.Day), true
	case NthWeekday:
		return nthWeekdayOf(year, rule.Month, rule.Weekday, rule.Nth), true
	case SpecialDates:
		for _, sd := range rule.Dates {
			if sd.Year == year {
				return sd.Date, true
			}
		}
		return Date{}, false
	default:
		return Date{}, false
	}
}

func nthWeekdayOf(year int, month time.Month, wd time.Weekday, nth int) Date {
	if nth == LastWeek {
		last := NewDate(year, month+1, 1).AddDays(-1)
		back := (int(last.Weekday()) - int(wd) + 7) % 7
		return last.AddDays(-back)
	}
	first := NewDate(year, month, 1)
	ahead := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDays(ahead + 7*(nth-1))
}

// Occurrence is a holiday resolved for one year with its display window.
type Occurrence struct {
	HolidayID HolidayID
	Year      int
	Window    Window
}

// OccurrencesIn resolves h for every year the period touches and returns the
// occurrences whose holiday date falls inside the period.
func OccurrencesIn(h Holiday, p Period) []Occurrence {
	var out []Occurrence
	for _, year := range p.Years() {
		date, ok := ResolveDate(h, year)
		if !ok || !p.Contains(date) {
			continue
		}
		w, err := ComputeWindow(date, h.PlacementDaysBefore, h.RemovalDaysAfter)
		if err != nil {
			continue
		}
		out = append(out, Occurrence{HolidayID: h.ID, Year: year, Window: w})
	}
	return out
}

// =============================================================================
// RRULE EXPRESSION
// =============================================================================

// ErrNotAnnual is returned when an RRULE is requested for a special recurrence.
var ErrNotAnnual = errors.New("recurrence is not annual")

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// AnnualRRule builds the yearly recurrence rule for an annual holiday starting
// at dtstart's year.
func AnnualRRule(r Recurrence, dtstart Date) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:    rrule.YEARLY,
		Dtstart: time.Date(dtstart.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	switch rule := r.(type) {
	case FixedDate:
		opt.Bymonth = []int{int(rule.Month)}
		opt.Bymonthday = []int{rule.Day}
	case NthWeekday:
		opt.Bymonth = []int{int(rule.Month)}
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[rule.Weekday].Nth(rule.Nth)}
	default:
		return nil, ErrNotAnnual
	}
	return rrule.NewRRule(opt)
}
