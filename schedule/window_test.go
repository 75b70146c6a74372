package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injoimydesign/flag-community/schedule"
)

func TestComputeWindow_IndependenceDay(t *testing.T) {
	w, err := schedule.ComputeWindow(d("2025-07-04"), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-02", w.PlacementDate.String())
	assert.Equal(t, "2025-07-07", w.RemovalDate.String())
}

func TestComputeWindow_ZeroOffsets(t *testing.T) {
	// GIVEN: Both offsets are 0
	// THEN: Placement and removal are the holiday itself

	w, err := schedule.ComputeWindow(d("2025-11-11"), 0, 0)
	require.NoError(t, err)
	assert.True(t, w.PlacementDate.Equal(w.HolidayDate))
	assert.True(t, w.RemovalDate.Equal(w.HolidayDate))
}

func TestComputeWindow_NegativeOffsetRejected(t *testing.T) {
	_, err := schedule.ComputeWindow(d("2025-07-04"), -1, 0)
	assert.ErrorIs(t, err, schedule.ErrValidation)

	_, err = schedule.ComputeWindow(d("2025-07-04"), 0, -1)
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestComputeWindow_Invariant(t *testing.T) {
	// placement <= holiday <= removal for every non-negative offset pair,
	// including windows that cross month and year boundaries.
	holidays := []string{"2025-01-01", "2025-02-28", "2024-02-29", "2025-07-04", "2025-12-31"}
	for _, hd := range holidays {
		for before := 0; before <= 10; before++ {
			for after := 0; after <= 10; after++ {
				w, err := schedule.ComputeWindow(d(hd), before, after)
				require.NoError(t, err)
				assert.True(t, w.PlacementDate.BeforeOrEqual(w.HolidayDate), "%s -%d", hd, before)
				assert.True(t, w.HolidayDate.BeforeOrEqual(w.RemovalDate), "%s +%d", hd, after)
				assert.Equal(t, before, schedule.DaysBetween(w.PlacementDate, w.HolidayDate))
				assert.Equal(t, after, schedule.DaysBetween(w.HolidayDate, w.RemovalDate))
			}
		}
	}
}

func TestRescheduledRemoval(t *testing.T) {
	holiday := d("2025-07-04")

	// Moved earlier: removal keeps its offset from the holiday.
	assert.Equal(t, "2025-07-07", schedule.RescheduledRemoval(holiday, d("2025-07-01"), 3).String())

	// Moved past the holiday: offset counts from the new date.
	assert.Equal(t, "2025-07-08", schedule.RescheduledRemoval(holiday, d("2025-07-05"), 3).String())
}
