package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// GENERATION TESTS
// =============================================================================

func TestPlanner_IndependenceDayExample(t *testing.T) {
	// GIVEN: Independence Day (July 4, 2 before, 3 after)
	//        Subscription active 2025-06-01 to 2025-12-31, one product
	// WHEN: Generating placements
	// THEN: Exactly one placement 2025-07-02 -> 2025-07-07, scheduled

	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)

	p := report.Created[0]
	assert.Equal(t, "2025-07-02", p.PlacementDate.String())
	assert.Equal(t, "2025-07-07", p.RemovalDate.String())
	assert.Equal(t, schedule.StatusScheduled, p.Status)
	assert.Equal(t, schedule.ProductID("flag-3x5"), p.ProductID)
	assert.Equal(t, 1, p.Version)

	assert.Len(t, f.all(t), 1)
}

func TestPlanner_Idempotent(t *testing.T) {
	// GIVEN: The example subscription already generated once
	// WHEN: Generating again
	// THEN: Zero new records; still exactly one for the tuple

	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	ctx := context.Background()

	_, err := f.planner.GeneratePlacements(ctx, sub)
	require.NoError(t, err)

	second, err := f.planner.GeneratePlacements(ctx, sub)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 1, second.Existing)
	assert.Empty(t, second.Failures)
	assert.Len(t, f.all(t), 1)
}

func TestPlanner_EndBeforeWindow(t *testing.T) {
	// GIVEN: Subscription ends 2025-07-01, the day before placement
	// THEN: Zero placements for Independence Day

	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-07-01", "independence-day")

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Empty(t, f.all(t))
}

func TestPlanner_BoundaryExclusion(t *testing.T) {
	// Placement date for 2025 is 2025-07-02.
	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"starts the day after placement", "2025-07-03", "2025-12-31", 0},
		{"ends the day before placement", "2025-01-01", "2025-07-01", 0},
		{"starts on placement day", "2025-07-02", "2025-12-31", 1},
		{"ends on placement day", "2025-01-01", "2025-07-02", 1},
		{"single day window", "2025-07-02", "2025-07-02", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, clockAt("2025-01-01"), independenceDay())
			sub := subscription("sub-1", tt.start, tt.end, "independence-day")
			report, err := f.planner.GeneratePlacements(context.Background(), sub)
			require.NoError(t, err)
			assert.Len(t, report.Created, tt.want)
		})
	}
}

func TestPlanner_OnlyActiveSubscriptions(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	for _, status := range []schedule.SubscriptionStatus{schedule.SubscriptionPending, schedule.SubscriptionCancelled} {
		sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
		sub.Status = status

		report, err := f.planner.GeneratePlacements(context.Background(), sub)
		require.NoError(t, err)
		assert.Empty(t, report.Created, "status %s", status)
	}
	assert.Empty(t, f.all(t))
}

func TestPlanner_InactiveHolidaySkipped(t *testing.T) {
	h := independenceDay()
	h.Active = false
	f := newFixture(t, clockAt("2025-05-15"), h)
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
}

func TestPlanner_SpecialSparsity(t *testing.T) {
	// GIVEN: A special holiday with dates for 2026 and 2031 only
	// WHEN: A subscription covers all of 2027
	// THEN: No placement is generated

	f := newFixture(t, clockAt("2026-12-01"), specialElection())

	sub2027 := subscription("sub-2027", "2027-01-01", "2027-12-31", "special-election")
	report, err := f.planner.GeneratePlacements(context.Background(), sub2027)
	require.NoError(t, err)
	assert.Empty(t, report.Created)

	sub2026 := subscription("sub-2026", "2026-01-01", "2026-12-31", "special-election")
	report, err = f.planner.GeneratePlacements(context.Background(), sub2026)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, "2026-11-02", report.Created[0].PlacementDate.String())
}

func TestPlanner_YearBoundary(t *testing.T) {
	// GIVEN: A subscription from 2025-12-01 to 2026-02-28
	//        New Year's Day placed 3 days early, Presidents' Day 1 day early
	// THEN: New Year's 2026 is placed 2025-12-29 (2025's falls before start)
	//       Presidents' Day 2026 is placed 2026-02-15

	f := newFixture(t, clockAt("2025-11-01"), newYearsDay(), presidentsDay())
	sub := subscription("sub-1", "2025-12-01", "2026-02-28", "new-years-day", "presidents-day")

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, report.Created, 2)

	byHoliday := map[schedule.HolidayID]schedule.FlagPlacement{}
	for _, p := range report.Created {
		byHoliday[p.HolidayID] = p
	}
	assert.Equal(t, "2025-12-29", byHoliday["new-years-day"].PlacementDate.String())
	assert.Equal(t, "2026-01-02", byHoliday["new-years-day"].RemovalDate.String())
	assert.Equal(t, "2026-02-15", byHoliday["presidents-day"].PlacementDate.String())
}

func TestPlanner_MultiYearSubscription(t *testing.T) {
	f := newFixture(t, clockAt("2025-01-01"), independenceDay())
	sub := subscription("sub-1", "2025-01-01", "2027-12-31", "independence-day")

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, report.Created, 3)
	assert.Equal(t, "2025-07-02", report.Created[0].PlacementDate.String())
	assert.Equal(t, "2027-07-02", report.Created[2].PlacementDate.String())
}

func TestPlanner_OnePlacementPerProduct(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	sub.Items = append(sub.Items,
		schedule.SubscriptionItem{ProductID: "flag-4x6", Quantity: 2},
		schedule.SubscriptionItem{ProductID: "flag-3x5", Quantity: 1},
	)

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, report.Created, 2, "a product listed twice is one placement")

	qty := map[schedule.ProductID]int{}
	for _, p := range report.Created {
		qty[p.ProductID] = p.Quantity
	}
	assert.Equal(t, 2, qty["flag-3x5"])
	assert.Equal(t, 2, qty["flag-4x6"])
}

func TestPlanner_RepeatedHolidayCountedOnce(t *testing.T) {
	// GIVEN: A subscription listing Independence Day twice
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day", "independence-day")

	// WHEN: Generating directly, without going through SubscriptionService
	report, err := f.planner.GeneratePlacements(context.Background(), sub)

	// THEN: One placement with the item's own quantity
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, sub.Items[0].Quantity, report.Created[0].Quantity)

	// Plan alone also ignores a repeated holiday.
	cands := schedule.Plan(sub, []schedule.Holiday{independenceDay(), independenceDay()})
	require.Len(t, cands, 1)
	assert.Equal(t, sub.Items[0].Quantity, cands[0].Quantity)
}

func TestPlanner_UnknownHolidayIgnored(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "no-such-holiday", "independence-day")

	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	assert.Len(t, report.Created, 1)
}

// =============================================================================
// FAILURE SEMANTICS
// =============================================================================

func TestPlanner_PersistenceFailureLoggedAndContinues(t *testing.T) {
	// GIVEN: The store fails to insert one of two products
	// WHEN: Generating placements
	// THEN: The other product is still created
	//       The failure is logged with its full tuple
	//       A re-run after the fault clears creates the missing one

	core, logs := observer.New(zapcore.ErrorLevel)
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	f.planner.Logger = zap.New(core)

	boom := errors.New("disk full")
	f.store.FailCreate = func(p schedule.FlagPlacement) error {
		if p.ProductID == "flag-4x6" {
			return boom
		}
		return nil
	}

	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	sub.Items = append(sub.Items, schedule.SubscriptionItem{ProductID: "flag-4x6", Quantity: 1})
	ctx := context.Background()

	report, err := f.planner.GeneratePlacements(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, report.Created, 1)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, boom)

	entries := logs.FilterMessage("failed to persist placement").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sub-1", fields["subscription_id"])
	assert.Equal(t, "independence-day", fields["holiday_id"])
	assert.Equal(t, "flag-4x6", fields["product_id"])
	assert.Equal(t, "2025-07-02", fields["placement_date"])

	f.store.FailCreate = nil
	rerun, err := f.planner.GeneratePlacements(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, rerun.Created, 1)
	assert.Equal(t, 1, rerun.Existing)
	assert.Len(t, f.all(t), 2)
}

func TestPlanner_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	// GIVEN: Many planners racing on the same subscription
	// THEN: Exactly one placement exists per tuple

	f := newFixture(t, clockAt("2025-01-01"), independenceDay(), presidentsDay())
	sub := subscription("sub-1", "2025-01-01", "2026-12-31", "independence-day", "presidents-day")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.planner.GeneratePlacements(context.Background(), sub)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[schedule.PlacementKey]bool{}
	for _, p := range f.all(t) {
		assert.False(t, seen[p.Key()], "duplicate %s", p.Key())
		seen[p.Key()] = true
	}
	assert.Len(t, seen, 4)
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

func TestPlanner_GenerateForHoliday(t *testing.T) {
	// GIVEN: Three subscriptions; one active with the holiday, one active
	//        without it, one cancelled with it
	// THEN: Only the active subscriber gets a placement

	f := newFixture(t, clockAt("2025-05-15"), independenceDay(), presidentsDay())
	ctx := context.Background()

	with := subscription("sub-with", "2025-06-01", "2025-12-31", "independence-day")
	without := subscription("sub-without", "2025-06-01", "2025-12-31", "presidents-day")
	cancelled := subscription("sub-cancelled", "2025-06-01", "2025-12-31", "independence-day")
	cancelled.Status = schedule.SubscriptionCancelled
	for _, s := range []schedule.Subscription{with, without, cancelled} {
		require.NoError(t, f.store.SaveSubscription(ctx, s))
	}

	report, err := f.planner.GenerateForHoliday(ctx, "independence-day")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Subscriptions)
	require.Len(t, report.Created, 1)
	assert.Equal(t, schedule.SubscriptionID("sub-with"), report.Created[0].SubscriptionID)
}

func TestPlanner_GenerateForHoliday_NotFound(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"))
	_, err := f.planner.GenerateForHoliday(context.Background(), "nope")
	assert.ErrorIs(t, err, schedule.ErrHolidayNotFound)
}

func TestPlanner_GenerateForSubscriptionAndAll(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()
	require.NoError(t, f.store.SaveSubscription(ctx, subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")))
	require.NoError(t, f.store.SaveSubscription(ctx, subscription("sub-2", "2025-06-01", "2025-12-31", "independence-day")))

	one, err := f.planner.GenerateForSubscription(ctx, "sub-1")
	require.NoError(t, err)
	assert.Len(t, one.Created, 1)

	all, err := f.planner.GenerateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Subscriptions)
	assert.Len(t, all.Created, 1)
	assert.Equal(t, 1, all.Existing)

	_, err = f.planner.GenerateForSubscription(ctx, "missing")
	assert.ErrorIs(t, err, schedule.ErrSubscriptionNotFound)
}

func TestPlan_Pure(t *testing.T) {
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	candidates := schedule.Plan(sub, []schedule.Holiday{independenceDay(), presidentsDay()})
	require.Len(t, candidates, 1, "presidents day is not selected")
	assert.Equal(t, "2025-07-04", candidates[0].Window.HolidayDate.String())
}
