package schedule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injoimydesign/flag-community/schedule"
)

func TestSubscriptionService_CreateActiveGenerates(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())

	sub, report, err := f.subs.Create(context.Background(),
		subscription("", "2025-06-01", "2025-12-31", "independence-day", "independence-day"))
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, []schedule.HolidayID{"independence-day"}, sub.HolidayIDs)
	require.NotNil(t, report)
	assert.Len(t, report.Created, 1)
}

func TestSubscriptionService_CreateValidates(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()

	_, _, err := f.subs.Create(ctx, subscription("", "2025-12-31", "2025-06-01", "independence-day"))
	assert.ErrorIs(t, err, schedule.ErrInvalidPeriod)

	noItems := subscription("", "2025-06-01", "2025-12-31", "independence-day")
	noItems.Items = nil
	_, _, err = f.subs.Create(ctx, noItems)
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestSubscriptionService_PendingThenActivate(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()

	pending := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	pending.Status = ""
	sub, report, err := f.subs.Create(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, schedule.SubscriptionPending, sub.Status)
	assert.Empty(t, report.Created)

	sub, report, err = f.subs.Activate(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, schedule.SubscriptionActive, sub.Status)
	assert.Len(t, report.Created, 1)

	_, _, err = f.subs.Activate(ctx, "sub-1")
	assert.ErrorIs(t, err, schedule.ErrSubscriptionState)
}

func TestSubscriptionService_CancelSkipsFuturePlacements(t *testing.T) {
	// GIVEN: An active subscription for 2025 with placements in Feb and Jul
	//        The February one was already placed
	// WHEN: Cancelling on 2025-05-15
	// THEN: The July placement is skipped with a reason, not deleted
	//       The placed February record is untouched

	f := newFixture(t, clockAt("2025-01-10"), independenceDay(), presidentsDay())
	ctx := context.Background()

	sub, report, err := f.subs.Create(ctx, subscription("sub-1", "2025-01-01", "2025-12-31", "independence-day", "presidents-day"))
	require.NoError(t, err)
	require.Len(t, report.Created, 2)

	var feb, jul schedule.FlagPlacement
	for _, p := range report.Created {
		if p.HolidayID == "presidents-day" {
			feb = p
		} else {
			jul = p
		}
	}
	_, err = f.placements.MarkPlaced(ctx, feb.ID, "crew-1", "")
	require.NoError(t, err)

	f.subs.Clock = clockAt("2025-05-15")
	cancelled, results, err := f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.SubscriptionCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)

	storedJul, err := f.store.GetPlacement(ctx, jul.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusSkipped, storedJul.Status)
	assert.Equal(t, schedule.CancelSkipReason, storedJul.SkipReason)

	storedFeb, err := f.store.GetPlacement(ctx, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPlaced, storedFeb.Status)

	assert.Len(t, f.all(t), 2, "nothing is deleted")

	_, _, err = f.subs.Cancel(ctx, sub.ID)
	assert.ErrorIs(t, err, schedule.ErrSubscriptionState)
}

func TestSubscriptionService_CancelLeavesTodayAlone(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()
	sub, _, err := f.subs.Create(ctx, subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day"))
	require.NoError(t, err)

	// Placement date is 2025-07-02; cancelling that same day is not "future".
	f.subs.Clock = clockAt("2025-07-02")
	_, results, err := f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSubscriptionService_Reactivate(t *testing.T) {
	// GIVEN: A subscription cancelled before its placement
	// WHEN: Reactivated
	// THEN: Status is active again; the skipped placement stays skipped and
	//       is not re-created

	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()
	sub, _, err := f.subs.Create(ctx, subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day"))
	require.NoError(t, err)
	_, _, err = f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)

	react, report, err := f.subs.Reactivate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.SubscriptionActive, react.Status)
	assert.Nil(t, react.CancelledAt)
	assert.Empty(t, report.Created)

	ps := f.all(t)
	require.Len(t, ps, 1)
	assert.Equal(t, schedule.StatusSkipped, ps[0].Status)

	_, _, err = f.subs.Reactivate(ctx, sub.ID)
	assert.ErrorIs(t, err, schedule.ErrSubscriptionState)
}

func TestSubscriptionService_Renew(t *testing.T) {
	// GIVEN: A 2025 subscription
	// WHEN: Renewed
	// THEN: A new active subscription for 2026 with the same holidays and
	//       products, and its own placement for 2026-07-02

	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()
	sub, _, err := f.subs.Create(ctx, subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day"))
	require.NoError(t, err)

	next, report, err := f.subs.Renew(ctx, sub.ID)
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID, next.ID)
	assert.Equal(t, sub.ID, next.RenewedFromID)
	assert.Equal(t, schedule.SubscriptionActive, next.Status)
	assert.Equal(t, "2026-06-01", next.StartDate.String())
	assert.Equal(t, "2026-12-31", next.EndDate.String())
	assert.Equal(t, sub.HolidayIDs, next.HolidayIDs)
	assert.Equal(t, sub.Items, next.Items)

	require.Len(t, report.Created, 1)
	assert.Equal(t, "2026-07-02", report.Created[0].PlacementDate.String())
	assert.Equal(t, next.ID, report.Created[0].SubscriptionID)

	prev, err := f.store.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.SubscriptionActive, prev.Status, "renewal leaves the old term alone")
}

func TestSubscriptionService_RenewPendingRejected(t *testing.T) {
	f := newFixture(t, clockAt("2025-05-15"), independenceDay())
	ctx := context.Background()
	pending := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	pending.Status = schedule.SubscriptionPending
	_, _, err := f.subs.Create(ctx, pending)
	require.NoError(t, err)

	_, _, err = f.subs.Renew(ctx, "sub-1")
	assert.ErrorIs(t, err, schedule.ErrSubscriptionState)
}
