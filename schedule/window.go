package schedule

// =============================================================================
// PLACEMENT WINDOW - When flags go up and come down around a holiday
// =============================================================================

// Window is the display span for one holiday occurrence.
//
// INVARIANT: PlacementDate <= HolidayDate <= RemovalDate.
type Window struct {
	HolidayDate   Date
	PlacementDate Date
	RemovalDate   Date
}

// ComputeWindow places flags before days ahead of the holiday and removes them
// after days later. Both offsets must be >= 0; with both 0 the window is the
// holiday itself.
func ComputeWindow(holidayDate Date, placementDaysBefore, removalDaysAfter int) (Window, error) {
	if placementDaysBefore < 0 {
		return Window{}, &ValidationError{Field: "placement_days_before", Reason: "must be >= 0"}
	}
	if removalDaysAfter < 0 {
		return Window{}, &ValidationError{Field: "removal_days_after", Reason: "must be >= 0"}
	}
	return Window{
		HolidayDate:   holidayDate,
		PlacementDate: holidayDate.AddDays(-placementDaysBefore),
		RemovalDate:   holidayDate.AddDays(removalDaysAfter),
	}, nil
}

// RescheduledRemoval returns the removal date for a placement moved to
// newPlacement. Flags stay up through the holiday and come down the holiday's
// configured number of days after the later of the two dates.
func RescheduledRemoval(holidayDate, newPlacement Date, removalDaysAfter int) Date {
	return MaxDate(holidayDate, newPlacement).AddDays(removalDaysAfter)
}
