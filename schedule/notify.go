package schedule

import (
	"context"
	"time"
)

// =============================================================================
// NOTIFICATIONS - Fire-and-forget from the scheduler's perspective
// =============================================================================

// Notification is one message to a customer.
type Notification struct {
	Recipient string
	Subject   string
	Message   string
}

// Notifier delivers notifications. Delivery failures never affect placement
// state; callers log them and move on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// =============================================================================
// ACTOR IDENTITY
// =============================================================================

// SystemActor attributes actions taken by automated jobs.
const SystemActor = "system"

type actorKey struct{}

// WithActor returns a context carrying the acting user id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the acting user id, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return id
	}
	return SystemActor
}

func resolveActor(ctx context.Context, actorID string) string {
	if actorID != "" {
		return actorID
	}
	return ActorFromContext(ctx)
}

// =============================================================================
// METRICS HOOK
// =============================================================================

// Recorder receives scheduling events. The metrics package implements it
// with Prometheus.
type Recorder interface {
	PlacementGenerated(holidayID HolidayID)
	GenerationFailed(holidayID HolidayID)
	GenerationCompleted(d time.Duration)
	Transition(action ActionKind, ok bool)
	ReminderSent()
}

type NopRecorder struct{}

func (NopRecorder) PlacementGenerated(HolidayID)      {}
func (NopRecorder) GenerationFailed(HolidayID)        {}
func (NopRecorder) GenerationCompleted(time.Duration) {}
func (NopRecorder) Transition(ActionKind, bool)       {}
func (NopRecorder) ReminderSent()                     {}
