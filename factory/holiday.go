/*
Package factory provides JSON to Go holiday conversion.

PURPOSE:
  Converts JSON holiday definitions into schedule.Holiday values with a typed
  recurrence. Operators define holidays in JSON (API, presets, database column)
  and the factory produces the tagged variant the resolver switches on.

JSON SCHEMA:
  {
    "id": "memorial-day",
    "name": "Memorial Day",
    "slug": "memorial-day",
    "recurrence": {
      "kind": "annual",
      "rule": {"type": "nth_weekday", "month": 5, "weekday": "monday", "nth": -1}
    },
    "placement_days_before": 2,
    "removal_days_after": 1,
    "active": true,
    "sort_order": 1
  }

  Rule types:
    {"type": "fixed", "month": 7, "day": 4}
    {"type": "nth_weekday", "month": 2, "weekday": "monday", "nth": 3}   nth -1 = last

  Special recurrences list explicit dates instead of a rule:
    "recurrence": {"kind": "special", "dates": [{"year": 2026, "date": "2026-11-03"}]}

DEFAULTS:
  - slug derived from name when empty
  - id defaults to slug
  - active defaults to true

SEE ALSO:
  - schedule/types.go: Recurrence variants
  - holidays/presets.go: Preset definitions in this format
  - store/sqlite/sqlite.go: Persists the recurrence object as JSON
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type HolidayJSON struct {
	ID                  string         `json:"id,omitempty"`
	Name                string         `json:"name"`
	Slug                string         `json:"slug,omitempty"`
	Recurrence          RecurrenceJSON `json:"recurrence"`
	PlacementDaysBefore int            `json:"placement_days_before"`
	RemovalDaysAfter    int            `json:"removal_days_after"`
	Active              *bool          `json:"active,omitempty"`
	SortOrder           int            `json:"sort_order,omitempty"`
}

type RecurrenceJSON struct {
	Kind  string            `json:"kind"` // annual, special
	Rule  *RuleJSON         `json:"rule,omitempty"`
	Dates []SpecialDateJSON `json:"dates,omitempty"`
}

type RuleJSON struct {
	Type    string `json:"type"` // fixed, nth_weekday
	Month   int    `json:"month"`
	Day     int    `json:"day,omitempty"`
	Weekday string `json:"weekday,omitempty"`
	Nth     int    `json:"nth,omitempty"`
}

type SpecialDateJSON struct {
	Year int    `json:"year"`
	Date string `json:"date"`
}

// =============================================================================
// HOLIDAY FACTORY
// =============================================================================

// HolidayFactory converts JSON holidays to schedule values.
type HolidayFactory struct{}

func NewHolidayFactory() *HolidayFactory {
	return &HolidayFactory{}
}

// ParseHoliday parses and validates a JSON holiday definition.
func (f *HolidayFactory) ParseHoliday(jsonStr string) (*schedule.Holiday, error) {
	var hj HolidayJSON
	if err := json.Unmarshal([]byte(jsonStr), &hj); err != nil {
		return nil, fmt.Errorf("failed to parse holiday JSON: %w", err)
	}
	return f.FromJSON(hj)
}

// FromJSON converts and validates hj.
func (f *HolidayFactory) FromJSON(hj HolidayJSON) (*schedule.Holiday, error) {
	rec, err := f.RecurrenceFromJSON(hj.Recurrence)
	if err != nil {
		return nil, err
	}

	slug := hj.Slug
	if slug == "" {
		slug = schedule.Slugify(hj.Name)
	}
	id := hj.ID
	if id == "" {
		id = slug
	}
	active := true
	if hj.Active != nil {
		active = *hj.Active
	}

	h := &schedule.Holiday{
		ID:                  schedule.HolidayID(id),
		Name:                strings.TrimSpace(hj.Name),
		Slug:                slug,
		Recurrence:          rec,
		PlacementDaysBefore: hj.PlacementDaysBefore,
		RemovalDaysAfter:    hj.RemovalDaysAfter,
		Active:              active,
		SortOrder:           hj.SortOrder,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// ToJSON converts a holiday back to its JSON form.
func (f *HolidayFactory) ToJSON(h schedule.Holiday) HolidayJSON {
	active := h.Active
	return HolidayJSON{
		ID:                  string(h.ID),
		Name:                h.Name,
		Slug:                h.Slug,
		Recurrence:          f.RecurrenceToJSON(h.Recurrence),
		PlacementDaysBefore: h.PlacementDaysBefore,
		RemovalDaysAfter:    h.RemovalDaysAfter,
		Active:              &active,
		SortOrder:           h.SortOrder,
	}
}

// =============================================================================
// RECURRENCE
// =============================================================================

func (f *HolidayFactory) RecurrenceFromJSON(rj RecurrenceJSON) (schedule.Recurrence, error) {
	switch schedule.RecurrenceKind(rj.Kind) {
	case schedule.RecurrenceAnnual:
		if rj.Rule == nil {
			return nil, &schedule.ValidationError{Field: "recurrence.rule", Reason: "annual recurrence requires a rule"}
		}
		return parseRule(*rj.Rule)

	case schedule.RecurrenceSpecial:
		dates := make([]schedule.SpecialDate, 0, len(rj.Dates))
		for _, dj := range rj.Dates {
			date, err := schedule.ParseDate(dj.Date)
			if err != nil {
				return nil, &schedule.ValidationError{Field: "recurrence.dates", Reason: err.Error()}
			}
			year := dj.Year
			if year == 0 {
				year = date.Year()
			}
			dates = append(dates, schedule.SpecialDate{Year: year, Date: date})
		}
		sd := schedule.SpecialDates{Dates: dates}
		if err := sd.Validate(); err != nil {
			return nil, err
		}
		return sd, nil
	}
	return nil, &schedule.ValidationError{Field: "recurrence.kind", Reason: fmt.Sprintf("unknown recurrence kind %q", rj.Kind)}
}

func (f *HolidayFactory) RecurrenceToJSON(r schedule.Recurrence) RecurrenceJSON {
	switch rule := r.(type) {
	case schedule.FixedDate:
		return RecurrenceJSON{
			Kind: string(schedule.RecurrenceAnnual),
			Rule: &RuleJSON{Type: "fixed", Month: int(rule.Month), Day: rule.Day},
		}
	case schedule.NthWeekday:
		return RecurrenceJSON{
			Kind: string(schedule.RecurrenceAnnual),
			Rule: &RuleJSON{
				Type:    "nth_weekday",
				Month:   int(rule.Month),
				Weekday: strings.ToLower(rule.Weekday.String()),
				Nth:     rule.Nth,
			},
		}
	case schedule.SpecialDates:
		rj := RecurrenceJSON{Kind: string(schedule.RecurrenceSpecial), Dates: []SpecialDateJSON{}}
		for _, sd := range rule.Dates {
			rj.Dates = append(rj.Dates, SpecialDateJSON{Year: sd.Year, Date: sd.Date.String()})
		}
		return rj
	}
	return RecurrenceJSON{}
}

// EncodeRecurrence serializes a recurrence for storage.
func EncodeRecurrence(r schedule.Recurrence) ([]byte, error) {
	return json.Marshal(NewHolidayFactory().RecurrenceToJSON(r))
}

// DecodeRecurrence is the inverse of EncodeRecurrence.
func DecodeRecurrence(data []byte) (schedule.Recurrence, error) {
	var rj RecurrenceJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("failed to parse recurrence JSON: %w", err)
	}
	return NewHolidayFactory().RecurrenceFromJSON(rj)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRule(rj RuleJSON) (schedule.Recurrence, error) {
	switch rj.Type {
	case "fixed":
		r := schedule.FixedDate{Month: time.Month(rj.Month), Day: rj.Day}
		return r, r.Validate()

	case "nth_weekday":
		wd, err := parseWeekday(rj.Weekday)
		if err != nil {
			return nil, err
		}
		r := schedule.NthWeekday{Month: time.Month(rj.Month), Weekday: wd, Nth: rj.Nth}
		return r, r.Validate()
	}
	return nil, &schedule.ValidationError{Field: "recurrence.rule.type", Reason: fmt.Sprintf("unknown rule type %q", rj.Type)}
}

func parseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if name == full || name == full[:3] {
			return wd, nil
		}
	}
	return 0, &schedule.ValidationError{Field: "recurrence.rule.weekday", Reason: fmt.Sprintf("unknown weekday %q", s)}
}
