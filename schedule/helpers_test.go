package schedule_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/injoimydesign/flag-community/schedule"
	"github.com/injoimydesign/flag-community/schedule/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) schedule.Date { return schedule.MustParseDate(s) }

func clockAt(date string) schedule.FixedClock {
	day := d(date).Time()
	return schedule.FixedClock{At: day.Add(12 * time.Hour)}
}

func independenceDay() schedule.Holiday {
	return schedule.Holiday{
		ID:                  "independence-day",
		Name:                "Independence Day",
		Slug:                "independence-day",
		Recurrence:          schedule.FixedDate{Month: time.July, Day: 4},
		PlacementDaysBefore: 2,
		RemovalDaysAfter:    3,
		Active:              true,
	}
}

func presidentsDay() schedule.Holiday {
	return schedule.Holiday{
		ID:                  "presidents-day",
		Name:                "Presidents' Day",
		Slug:                "presidents-day",
		Recurrence:          schedule.NthWeekday{Month: time.February, Weekday: time.Monday, Nth: 3},
		PlacementDaysBefore: 1,
		RemovalDaysAfter:    1,
		Active:              true,
	}
}

func newYearsDay() schedule.Holiday {
	return schedule.Holiday{
		ID:                  "new-years-day",
		Name:                "New Year's Day",
		Slug:                "new-years-day",
		Recurrence:          schedule.FixedDate{Month: time.January, Day: 1},
		PlacementDaysBefore: 3,
		RemovalDaysAfter:    1,
		Active:              true,
	}
}

func specialElection() schedule.Holiday {
	return schedule.Holiday{
		ID:   "special-election",
		Name: "Special Election Day",
		Slug: "special-election",
		Recurrence: schedule.SpecialDates{Dates: []schedule.SpecialDate{
			{Year: 2026, Date: d("2026-11-03")},
			{Year: 2031, Date: d("2031-11-04")},
		}},
		PlacementDaysBefore: 1,
		RemovalDaysAfter:    1,
		Active:              true,
	}
}

func subscription(id, start, end string, holidays ...schedule.HolidayID) schedule.Subscription {
	return schedule.Subscription{
		ID:         schedule.SubscriptionID(id),
		CustomerID: "cust-1",
		Status:     schedule.SubscriptionActive,
		StartDate:  d(start),
		EndDate:    d(end),
		HolidayIDs: holidays,
		Items: []schedule.SubscriptionItem{
			{ProductID: "flag-3x5", Quantity: 1, UnitPrice: decimal.RequireFromString("25.00")},
		},
	}
}

type fixture struct {
	store      *store.Memory
	planner    *schedule.Planner
	placements *schedule.PlacementService
	subs       *schedule.SubscriptionService
	notifier   *recordingNotifier
	ids        atomic.Int64
}

func newFixture(t *testing.T, clock schedule.Clock, holidays ...schedule.Holiday) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	for _, h := range holidays {
		require.NoError(t, mem.SaveHoliday(ctx, h))
	}
	require.NoError(t, mem.SaveCustomer(ctx, schedule.Customer{
		ID:      "cust-1",
		Name:    "Pat Doe",
		Email:   "pat@example.com",
		Address: "12 Elm St",
	}))

	f := &fixture{store: mem, notifier: &recordingNotifier{}}

	f.planner = schedule.NewPlanner(mem, nil)
	f.planner.Clock = clock
	f.planner.NewID = func() schedule.PlacementID {
		return schedule.PlacementID(fmt.Sprintf("pl-%d", f.ids.Add(1)))
	}

	f.placements = schedule.NewPlacementService(mem, f.notifier, nil)
	f.placements.Clock = clock

	f.subs = schedule.NewSubscriptionService(mem, f.placements, f.planner, nil)
	f.subs.Clock = clock
	return f
}

func (f *fixture) all(t *testing.T) []schedule.FlagPlacement {
	t.Helper()
	ps, err := f.store.ListPlacements(context.Background(), schedule.PlacementFilter{})
	require.NoError(t, err)
	return ps
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []schedule.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n schedule.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
