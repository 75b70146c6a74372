package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injoimydesign/flag-community/schedule"
	"github.com/injoimydesign/flag-community/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "flags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func memorialDay() schedule.Holiday {
	return schedule.Holiday{
		ID:                  "memorial-day",
		Name:                "Memorial Day",
		Slug:                "memorial-day",
		Recurrence:          schedule.NthWeekday{Month: time.May, Weekday: time.Monday, Nth: schedule.LastWeek},
		PlacementDaysBefore: 2,
		RemovalDaysAfter:    1,
		Active:              true,
		SortOrder:           2,
	}
}

func placement(id string, date string) schedule.FlagPlacement {
	d := schedule.MustParseDate(date)
	return schedule.FlagPlacement{
		ID:             schedule.PlacementID(id),
		SubscriptionID: "sub-1",
		HolidayID:      "memorial-day",
		ProductID:      "flag-3x5",
		Quantity:       2,
		PlacementDate:  d,
		RemovalDate:    d.AddDays(3),
		Status:         schedule.StatusScheduled,
	}
}

func TestHolidays_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveHoliday(ctx, memorialDay()))
	require.NoError(t, s.SaveHoliday(ctx, schedule.Holiday{
		ID: "election", Name: "Election Day", Slug: "election", Active: false, SortOrder: 1,
		Recurrence: schedule.SpecialDates{Dates: []schedule.SpecialDate{
			{Year: 2026, Date: schedule.MustParseDate("2026-11-03")},
		}},
	}))

	h, err := s.GetHoliday(ctx, "memorial-day")
	require.NoError(t, err)
	assert.Equal(t, memorialDay().Recurrence, h.Recurrence)
	assert.Equal(t, 2, h.PlacementDaysBefore)

	all, err := s.ListHolidays(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, schedule.HolidayID("election"), all[0].ID, "ordered by sort order")

	active, err := s.ListHolidays(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = s.GetHoliday(ctx, "nope")
	assert.ErrorIs(t, err, schedule.ErrHolidayNotFound)
}

func TestHolidays_SlugUnique(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveHoliday(ctx, memorialDay()))

	dup := memorialDay()
	dup.ID = "memorial-day-2"
	err := s.SaveHoliday(ctx, dup)
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestSubscriptions_ChildrenAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	sub := schedule.Subscription{
		ID: "sub-1", CustomerID: "cust-1", Status: schedule.SubscriptionActive,
		StartDate:  schedule.MustParseDate("2025-01-01"),
		EndDate:    schedule.MustParseDate("2025-12-31"),
		HolidayIDs: []schedule.HolidayID{"memorial-day", "flag-day"},
		Items: []schedule.SubscriptionItem{
			{ProductID: "flag-3x5", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
		},
	}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	got, err := s.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, sub.HolidayIDs, got.HolidayIDs)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("25").Equal(got.Total()))

	// Replacing drops the old children.
	sub.HolidayIDs = []schedule.HolidayID{"flag-day"}
	sub.Status = schedule.SubscriptionCancelled
	require.NoError(t, s.SaveSubscription(ctx, sub))

	forMemorial, err := s.ListSubscriptionsForHoliday(ctx, "memorial-day", "")
	require.NoError(t, err)
	assert.Empty(t, forMemorial)

	forFlag, err := s.ListSubscriptionsForHoliday(ctx, "flag-day", schedule.SubscriptionCancelled)
	require.NoError(t, err)
	assert.Len(t, forFlag, 1)

	active, err := s.ListSubscriptions(ctx, schedule.SubscriptionActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPlacements_UniqueTuple(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.CreatePlacement(ctx, placement("pl-1", "2025-05-24")))
	err := s.CreatePlacement(ctx, placement("pl-2", "2025-05-24"))
	assert.ErrorIs(t, err, schedule.ErrDuplicatePlacement)

	exists, err := s.PlacementExists(ctx, placement("pl-1", "2025-05-24").Key())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPlacements_ConcurrentCreateOnlyOneWins(t *testing.T) {
	// GIVEN: Ten writers racing on the same tuple
	// THEN: Exactly one insert succeeds

	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := placement("pl-"+string(rune('a'+i)), "2025-05-24")
			if s.CreatePlacement(ctx, p) == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestPlacements_UpdateCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreatePlacement(ctx, placement("pl-1", "2025-05-24")))

	p, err := s.GetPlacement(ctx, "pl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	now := time.Date(2025, time.May, 24, 9, 0, 0, 0, time.UTC)
	p.Status = schedule.StatusPlaced
	p.PlacedAt = &now
	p.PlacedBy = "crew-7"
	require.NoError(t, s.UpdatePlacement(ctx, *p))

	stale := *p
	stale.Notes = "late write"
	assert.ErrorIs(t, s.UpdatePlacement(ctx, stale), schedule.ErrConcurrentModification)

	got, err := s.GetPlacement(ctx, "pl-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, schedule.StatusPlaced, got.Status)
	assert.Equal(t, "crew-7", got.PlacedBy)
	require.NotNil(t, got.PlacedAt)
	assert.True(t, now.Equal(*got.PlacedAt))
	assert.Empty(t, got.Notes)

	missing := placement("pl-404", "2025-05-24")
	missing.Version = 1
	assert.ErrorIs(t, s.UpdatePlacement(ctx, missing), schedule.ErrPlacementNotFound)
}

func TestPlacements_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.CreatePlacement(ctx, placement("pl-1", "2025-05-24")))
	second := placement("pl-2", "2025-07-02")
	second.HolidayID = "independence-day"
	require.NoError(t, s.CreatePlacement(ctx, second))
	skipped := placement("pl-3", "2025-11-09")
	skipped.HolidayID = "veterans-day"
	skipped.Status = schedule.StatusSkipped
	require.NoError(t, s.CreatePlacement(ctx, skipped))

	list, err := s.ListPlacements(ctx, schedule.PlacementFilter{
		Statuses: []schedule.PlacementStatus{schedule.StatusScheduled},
		From:     schedule.MustParseDate("2025-05-01"),
		To:       schedule.MustParseDate("2025-07-31"),
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, schedule.PlacementID("pl-1"), list[0].ID)
	assert.Equal(t, schedule.PlacementID("pl-2"), list[1].ID)

	byHoliday, err := s.ListPlacements(ctx, schedule.PlacementFilter{HolidayID: "veterans-day"})
	require.NoError(t, err)
	assert.Len(t, byHoliday, 1)
}

func TestCatalog_ProductsAndCustomers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveProduct(ctx, schedule.FlagProduct{
		ID: "flag-3x5", Name: "3x5 Nylon", Size: "3x5", Price: decimal.RequireFromString("19.99"), Active: true,
	}))
	require.NoError(t, s.SaveProduct(ctx, schedule.FlagProduct{
		ID: "flag-retired", Name: "Old Cotton", Price: decimal.Zero,
	}))
	p, err := s.GetProduct(ctx, "flag-3x5")
	require.NoError(t, err)
	assert.Equal(t, "19.99", p.Price.String())

	active, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, s.SaveCustomer(ctx, schedule.Customer{ID: "cust-1", Name: "Pat Doe", Address: "12 Elm St"}))
	c, err := s.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "12 Elm St", c.Address)

	_, err = s.GetCustomer(ctx, "cust-2")
	assert.ErrorIs(t, err, schedule.ErrCustomerNotFound)

	require.NoError(t, s.Reset(ctx))
	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, customers)
}
