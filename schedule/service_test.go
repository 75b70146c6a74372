package schedule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injoimydesign/flag-community/schedule"
)

func generatedFixture(t *testing.T, today string) (*fixture, schedule.FlagPlacement) {
	t.Helper()
	f := newFixture(t, clockAt(today), independenceDay())
	sub := subscription("sub-1", "2025-06-01", "2025-12-31", "independence-day")
	require.NoError(t, f.store.SaveSubscription(context.Background(), sub))
	report, err := f.planner.GeneratePlacements(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	return f, report.Created[0]
}

// =============================================================================
// SINGLE TRANSITIONS
// =============================================================================

func TestPlacementService_MarkPlaced(t *testing.T) {
	// GIVEN: A scheduled placement
	// WHEN: An automated job marks it placed without an actor
	// THEN: placed_by is "system", the version advances, the customer is notified

	f, p := generatedFixture(t, "2025-07-02")
	ctx := context.Background()

	placed, err := f.placements.MarkPlaced(ctx, p.ID, "", "done")
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPlaced, placed.Status)
	assert.Equal(t, schedule.SystemActor, placed.PlacedBy)
	assert.Equal(t, 2, placed.Version)

	stored, err := f.store.GetPlacement(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPlaced, stored.Status)
	assert.Equal(t, 2, stored.Version)

	require.Equal(t, 1, f.notifier.count())
	n := f.notifier.sent[0]
	assert.Equal(t, "pat@example.com", n.Recipient)
	assert.Contains(t, n.Subject, "Independence Day")
	assert.Contains(t, n.Message, "12 Elm St")
}

func TestPlacementService_ActorFromContext(t *testing.T) {
	f, p := generatedFixture(t, "2025-07-02")
	ctx := schedule.WithActor(context.Background(), "crew-7")

	placed, err := f.placements.MarkPlaced(ctx, p.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "crew-7", placed.PlacedBy)

	removed, err := f.placements.MarkRemoved(ctx, p.ID, "crew-9", "")
	require.NoError(t, err)
	assert.Equal(t, "crew-9", removed.RemovedBy, "explicit actor wins")
}

func TestPlacementService_SiteAddressOverride(t *testing.T) {
	f, p := generatedFixture(t, "2025-07-02")
	ctx := context.Background()

	p.SiteAddress = "Town Hall, 1 Main St"
	require.NoError(t, f.store.UpdatePlacement(ctx, p))

	_, err := f.placements.MarkPlaced(ctx, p.ID, "crew-7", "")
	require.NoError(t, err)
	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.sent[0].Message, "Town Hall, 1 Main St")
}

func TestPlacementService_IllegalTransitionLeavesStoreUnchanged(t *testing.T) {
	f, p := generatedFixture(t, "2025-07-02")
	ctx := context.Background()

	_, err := f.placements.MarkRemoved(ctx, p.ID, "crew-7", "")
	assert.ErrorIs(t, err, schedule.ErrIllegalTransition)

	stored, err := f.store.GetPlacement(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusScheduled, stored.Status)
	assert.Equal(t, 1, stored.Version)
	assert.Zero(t, f.notifier.count())
}

func TestPlacementService_NotFound(t *testing.T) {
	f, _ := generatedFixture(t, "2025-07-02")
	_, err := f.placements.MarkPlaced(context.Background(), "missing", "", "")
	assert.ErrorIs(t, err, schedule.ErrPlacementNotFound)
}

func TestPlacementService_StaleWriteRejected(t *testing.T) {
	// GIVEN: Two operators read the same scheduled placement
	// WHEN: Both write a transition
	// THEN: Only the first write lands

	f, p := generatedFixture(t, "2025-07-02")
	ctx := context.Background()

	first, err := schedule.Transition(p, schedule.Action{Kind: schedule.ActionPlace, Actor: "a"}, clockAt("2025-07-02").At, d("2025-07-02"))
	require.NoError(t, err)
	second, err := schedule.Transition(p, schedule.Action{Kind: schedule.ActionSkip, Reason: "b"}, clockAt("2025-07-02").At, d("2025-07-02"))
	require.NoError(t, err)

	require.NoError(t, f.store.UpdatePlacement(ctx, first.Placement))
	err = f.store.UpdatePlacement(ctx, second.Placement)
	assert.ErrorIs(t, err, schedule.ErrConcurrentModification)
	assert.True(t, schedule.IsRetryable(err))

	stored, _ := f.store.GetPlacement(ctx, p.ID)
	assert.Equal(t, schedule.StatusPlaced, stored.Status)
}

// =============================================================================
// RESCHEDULE
// =============================================================================

func TestPlacementService_RescheduleUsesHolidayOffset(t *testing.T) {
	// GIVEN: Independence Day placement on 07-02 (removal offset 3)
	// WHEN: Rescheduled to 07-05, after the holiday
	// THEN: Removal is 3 days after the new date

	f, p := generatedFixture(t, "2025-06-20")

	moved, err := f.placements.Reschedule(context.Background(), p.ID, d("2025-07-05"), "crew unavailable")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-05", moved.PlacementDate.String())
	assert.Equal(t, "2025-07-08", moved.RemovalDate.String())
	assert.Contains(t, moved.Notes, "Rescheduled from 2025-07-02 to 2025-07-05: crew unavailable")
}

func TestPlacementService_RescheduleEarlierKeepsHolidayRemoval(t *testing.T) {
	f, p := generatedFixture(t, "2025-06-20")

	moved, err := f.placements.Reschedule(context.Background(), p.ID, d("2025-06-30"), "")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-07", moved.RemovalDate.String())
}

func TestPlacementService_RescheduledPlacementNotRecreated(t *testing.T) {
	// GIVEN: A rescheduled placement
	// WHEN: The planner runs again
	// THEN: No new placement is created for the original date

	f, p := generatedFixture(t, "2025-06-20")
	ctx := context.Background()

	_, err := f.placements.Reschedule(ctx, p.ID, d("2025-07-01"), "")
	require.NoError(t, err)

	report, err := f.planner.GenerateForSubscription(ctx, "sub-1")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Len(t, f.all(t), 1)
}

func TestPlacementService_ReschedulePastRejected(t *testing.T) {
	f, p := generatedFixture(t, "2025-06-20")
	_, err := f.placements.Reschedule(context.Background(), p.ID, d("2025-06-19"), "")
	assert.ErrorIs(t, err, schedule.ErrValidation)
	assert.Equal(t, "reschedule date is in the past", schedule.ReasonOf(err))
}

// =============================================================================
// BULK
// =============================================================================

func TestPlacementService_BulkReportsPerItem(t *testing.T) {
	// GIVEN: One scheduled, one already placed, one unknown id
	// WHEN: Bulk "place"
	// THEN: First succeeds, second "not scheduled", third "not found"

	f := newFixture(t, clockAt("2025-05-15"), independenceDay(), presidentsDay())
	ctx := context.Background()
	sub := subscription("sub-1", "2025-01-01", "2025-12-31", "independence-day", "presidents-day")
	require.NoError(t, f.store.SaveSubscription(ctx, sub))
	report, err := f.planner.GeneratePlacements(ctx, sub)
	require.NoError(t, err)
	require.Len(t, report.Created, 2)

	a, b := report.Created[0].ID, report.Created[1].ID
	_, err = f.placements.MarkPlaced(ctx, b, "crew-1", "")
	require.NoError(t, err)

	results := f.placements.Bulk(ctx, []schedule.PlacementID{a, b, "ghost"}, schedule.Action{Kind: schedule.ActionPlace, Actor: "crew-2"})
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	require.NotNil(t, results[0].Placement)
	assert.Equal(t, "crew-2", results[0].Placement.PlacedBy)

	assert.False(t, results[1].OK)
	assert.Equal(t, "not scheduled", results[1].Reason)

	assert.False(t, results[2].OK)
	assert.Equal(t, "not found", results[2].Reason)
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestPlacementService_SendReminders(t *testing.T) {
	// GIVEN: A placement on 2025-07-02 and today 2025-06-30
	// WHEN: Sending reminders 3 days ahead, twice
	// THEN: One reminder the first time, none the second

	f, p := generatedFixture(t, "2025-06-30")
	ctx := context.Background()

	sent, err := f.placements.SendReminders(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.sent[0].Subject, "2025-07-02")

	stored, _ := f.store.GetPlacement(ctx, p.ID)
	assert.NotNil(t, stored.ReminderSentAt)
	assert.Equal(t, schedule.StatusScheduled, stored.Status)

	again, err := f.placements.SendReminders(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, 1, f.notifier.count())
}

func TestPlacementService_SendReminders_OutsideHorizon(t *testing.T) {
	f, _ := generatedFixture(t, "2025-06-20")
	sent, err := f.placements.SendReminders(context.Background(), 3)
	require.NoError(t, err)
	assert.Zero(t, sent)

	_, err = f.placements.SendReminders(context.Background(), -1)
	assert.ErrorIs(t, err, schedule.ErrValidation)
}
