/*
Package holidays provides preset patriotic holiday definitions.

These functions create JSON holiday definitions in the factory format. They
construct JSON strings directly so operators can copy, edit and POST them.

USAGE:
  import "github.com/injoimydesign/flag-community/holidays"

  jsonStr := holidays.IndependenceDayJSON(2, 3)
  holiday, err := factory.NewHolidayFactory().ParseHoliday(jsonStr)

  // Or every preset at once
  for _, jsonStr := range holidays.Defaults() { ... }
*/
package holidays

import (
	"encoding/json"
	"time"
)

func fixedJSON(name string, month time.Month, day, before, after, order int) string {
	return marshal(map[string]interface{}{
		"name": name,
		"recurrence": map[string]interface{}{
			"kind": "annual",
			"rule": map[string]interface{}{"type": "fixed", "month": int(month), "day": day},
		},
		"placement_days_before": before,
		"removal_days_after":    after,
		"sort_order":            order,
	})
}

func nthWeekdayJSON(name string, month time.Month, weekday string, nth, before, after, order int) string {
	return marshal(map[string]interface{}{
		"name": name,
		"recurrence": map[string]interface{}{
			"kind": "annual",
			"rule": map[string]interface{}{
				"type":    "nth_weekday",
				"month":   int(month),
				"weekday": weekday,
				"nth":     nth,
			},
		},
		"placement_days_before": before,
		"removal_days_after":    after,
		"sort_order":            order,
	})
}

func marshal(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// =============================================================================
// ANNUAL HOLIDAYS (in calendar order)
// =============================================================================

// PresidentsDayJSON is the third Monday of February.
func PresidentsDayJSON(before, after int) string {
	return nthWeekdayJSON("Presidents' Day", time.February, "monday", 3, before, after, 1)
}

// MemorialDayJSON is the last Monday of May.
func MemorialDayJSON(before, after int) string {
	return nthWeekdayJSON("Memorial Day", time.May, "monday", -1, before, after, 2)
}

func FlagDayJSON(before, after int) string {
	return fixedJSON("Flag Day", time.June, 14, before, after, 3)
}

func IndependenceDayJSON(before, after int) string {
	return fixedJSON("Independence Day", time.July, 4, before, after, 4)
}

// LaborDayJSON is the first Monday of September.
func LaborDayJSON(before, after int) string {
	return nthWeekdayJSON("Labor Day", time.September, "monday", 1, before, after, 5)
}

func PatriotDayJSON(before, after int) string {
	return fixedJSON("Patriot Day", time.September, 11, before, after, 6)
}

func VeteransDayJSON(before, after int) string {
	return fixedJSON("Veterans Day", time.November, 11, before, after, 7)
}

func PearlHarborRemembranceDayJSON(before, after int) string {
	return fixedJSON("Pearl Harbor Remembrance Day", time.December, 7, before, after, 8)
}

// =============================================================================
// SPECIAL HOLIDAYS
// =============================================================================

// SpecialJSON returns a sparse holiday that occurs only on the given dates
// (YYYY-MM-DD).
func SpecialJSON(name string, before, after int, dates ...string) string {
	list := make([]map[string]interface{}, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		list = append(list, map[string]interface{}{"year": t.Year(), "date": d})
	}
	return marshal(map[string]interface{}{
		"name": name,
		"recurrence": map[string]interface{}{
			"kind":  "special",
			"dates": list,
		},
		"placement_days_before": before,
		"removal_days_after":    after,
		"sort_order":            100,
	})
}

// Defaults returns every annual preset with the service's standard offsets:
// flags go up two days early and come down the day after, except July 4th
// which stays up through the weekend.
func Defaults() []string {
	return []string{
		PresidentsDayJSON(2, 1),
		MemorialDayJSON(2, 1),
		FlagDayJSON(2, 1),
		IndependenceDayJSON(2, 3),
		LaborDayJSON(2, 1),
		PatriotDayJSON(2, 1),
		VeteransDayJSON(2, 1),
		PearlHarborRemembranceDayJSON(2, 1),
	}
}
