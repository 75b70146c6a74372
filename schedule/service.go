/*
service.go - Persistence adapter around the placement state machine

PURPOSE:
  Loads a placement, runs the pure Transition, writes the result with an
  optimistic version check, then performs the side effects the transition asked
  for (notifications). Also hosts the reminder sweep.

FLOW (single transition):
  1. GetPlacement
  2. Resolve actor (explicit id, else context, else "system")
  3. Transition(current, action, now, today)   -> new record + effects
  4. UpdatePlacement(new)                       -> version CAS
  5. Dispatch effects                           -> fire-and-forget

  A lost CAS race returns ErrConcurrentModification; the caller may retry.

BULK:
  Bulk runs each id through the same flow independently and reports success or
  a short reason ("not scheduled", "not found") per id. One bad id never fails
  the batch.

SEE ALSO:
  - transition.go: The pure state machine
  - planner.go: Creates the placements this service mutates
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type PlacementService struct {
	Placements    PlacementStore
	Holidays      HolidayStore
	Subscriptions SubscriptionStore
	Customers     CustomerStore
	Notifier      Notifier
	Clock         Clock
	Logger        *zap.Logger
	Metrics       Recorder

	// Location defines "today" for date validation. nil means UTC.
	Location *time.Location
}

func NewPlacementService(store Store, notifier Notifier, logger *zap.Logger) *PlacementService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlacementService{
		Placements:    store,
		Holidays:      store,
		Subscriptions: store,
		Customers:     store,
		Notifier:      notifier,
		Clock:         SystemClock{},
		Logger:        logger,
		Metrics:       NopRecorder{},
	}
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *PlacementService) Get(ctx context.Context, id PlacementID) (*FlagPlacement, error) {
	return s.Placements.GetPlacement(ctx, id)
}

func (s *PlacementService) List(ctx context.Context, filter PlacementFilter) ([]FlagPlacement, error) {
	return s.Placements.ListPlacements(ctx, filter)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (s *PlacementService) MarkPlaced(ctx context.Context, id PlacementID, actorID, notes string) (*FlagPlacement, error) {
	return s.Apply(ctx, id, Action{Kind: ActionPlace, Actor: actorID, Notes: notes})
}

func (s *PlacementService) MarkRemoved(ctx context.Context, id PlacementID, actorID, notes string) (*FlagPlacement, error) {
	return s.Apply(ctx, id, Action{Kind: ActionRemove, Actor: actorID, Notes: notes})
}

func (s *PlacementService) MarkSkipped(ctx context.Context, id PlacementID, reason, notes string) (*FlagPlacement, error) {
	return s.Apply(ctx, id, Action{Kind: ActionSkip, Reason: reason, Notes: notes})
}

// Reschedule moves a scheduled placement to newDate. The removal date is
// recomputed from the holiday's configured removal offset.
func (s *PlacementService) Reschedule(ctx context.Context, id PlacementID, newDate Date, reason string) (*FlagPlacement, error) {
	return s.Apply(ctx, id, Action{Kind: ActionReschedule, NewDate: newDate, Reason: reason})
}

// Apply runs one action against one placement. On any error the stored record
// is unchanged.
func (s *PlacementService) Apply(ctx context.Context, id PlacementID, a Action) (*FlagPlacement, error) {
	current, err := s.Placements.GetPlacement(ctx, id)
	if err != nil {
		s.metrics().Transition(a.Kind, false)
		return nil, err
	}

	switch a.Kind {
	case ActionPlace, ActionRemove:
		a.Actor = resolveActor(ctx, a.Actor)
	case ActionReschedule:
		if a.NewRemovalDate.IsZero() && !a.NewDate.IsZero() {
			a.NewRemovalDate = s.removalFor(ctx, *current, a.NewDate)
		}
	}

	now := s.clock().Now()
	out, err := Transition(*current, a, now, Today(s.clock(), s.Location))
	if err != nil {
		s.metrics().Transition(a.Kind, false)
		return nil, err
	}

	if err := s.Placements.UpdatePlacement(ctx, out.Placement); err != nil {
		s.metrics().Transition(a.Kind, false)
		return nil, err
	}
	updated := out.Placement
	updated.Version++
	s.metrics().Transition(a.Kind, true)

	s.logger().Info("placement transitioned",
		zap.String("placement_id", string(updated.ID)),
		zap.String("action", string(a.Kind)),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor", actorOrSystem(a.Actor)))

	for _, eff := range out.Effects {
		if eff == EffectNotifyPlaced {
			s.notifyPlaced(ctx, updated)
		}
	}
	return &updated, nil
}

func actorOrSystem(a string) string {
	if a == "" {
		return SystemActor
	}
	return a
}

// removalFor recomputes the removal date for a placement moving to newDate,
// using the holiday occurrence the placement was planned for. Falls back to the
// state machine default when the holiday cannot be loaded.
func (s *PlacementService) removalFor(ctx context.Context, p FlagPlacement, newDate Date) Date {
	if s.Holidays == nil {
		return Date{}
	}
	h, err := s.Holidays.GetHoliday(ctx, p.HolidayID)
	if err != nil {
		s.logger().Warn("holiday unavailable for reschedule, keeping removal date",
			zap.String("placement_id", string(p.ID)),
			zap.String("holiday_id", string(p.HolidayID)),
			zap.Error(err))
		return Date{}
	}
	holidayDate, ok := occurrenceFor(*h, p.Key().Date)
	if !ok {
		return Date{}
	}
	return RescheduledRemoval(holidayDate, newDate, h.RemovalDaysAfter)
}

// occurrenceFor finds the holiday date a planned placement date belongs to:
// the first occurrence on or after planned. A holiday early in January can be
// planned in the previous December, so the following year is also checked.
func occurrenceFor(h Holiday, planned Date) (Date, bool) {
	for _, year := range []int{planned.Year(), planned.Year() + 1} {
		d, ok := ResolveDate(h, year)
		if ok && d.AfterOrEqual(planned) {
			return d, true
		}
	}
	return Date{}, false
}

// =============================================================================
// BULK
// =============================================================================

// BulkResult is the per-item outcome of a batch request.
type BulkResult struct {
	ID        PlacementID
	OK        bool
	Reason    string
	Placement *FlagPlacement
}

// Bulk applies a to every id independently.
func (s *PlacementService) Bulk(ctx context.Context, ids []PlacementID, a Action) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		p, err := s.Apply(ctx, id, a)
		if err != nil {
			results = append(results, BulkResult{ID: id, Reason: ReasonOf(err)})
			continue
		}
		results = append(results, BulkResult{ID: id, OK: true, Placement: p})
	}
	return results
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type recipient struct {
	customer *Customer
	holiday  string
}

func (s *PlacementService) recipientFor(ctx context.Context, p FlagPlacement) (*recipient, error) {
	if s.Subscriptions == nil || s.Customers == nil {
		return nil, fmt.Errorf("no customer lookup configured")
	}
	sub, err := s.Subscriptions.GetSubscription(ctx, p.SubscriptionID)
	if err != nil {
		return nil, err
	}
	cust, err := s.Customers.GetCustomer(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	r := &recipient{customer: cust, holiday: string(p.HolidayID)}
	if s.Holidays != nil {
		if h, err := s.Holidays.GetHoliday(ctx, p.HolidayID); err == nil {
			r.holiday = h.Name
		}
	}
	return r, nil
}

func (s *PlacementService) notifyPlaced(ctx context.Context, p FlagPlacement) {
	r, err := s.recipientFor(ctx, p)
	if err != nil || r.customer.Email == "" {
		s.logger().Debug("no recipient for placement notification",
			zap.String("placement_id", string(p.ID)), zap.Error(err))
		return
	}
	n := Notification{
		Recipient: r.customer.Email,
		Subject:   fmt.Sprintf("Your flags are up for %s", r.holiday),
		Message: fmt.Sprintf("Hi %s,\n\nYour flags were placed at %s on %s and will be collected on %s.\n",
			r.customer.Name, p.Address(r.customer.Address), p.PlacementDate, p.RemovalDate),
	}
	if err := s.notifier().Notify(ctx, n); err != nil {
		s.logger().Warn("placement notification failed",
			zap.String("placement_id", string(p.ID)), zap.Error(err))
	}
}

// SendReminders notifies customers about scheduled placements whose placement
// date is within daysAhead days from today and stamps ReminderSentAt. Each
// placement is reminded at most once. Returns the number of reminders sent.
func (s *PlacementService) SendReminders(ctx context.Context, daysAhead int) (int, error) {
	if daysAhead < 0 {
		return 0, &ValidationError{Field: "days_ahead", Reason: "must be >= 0"}
	}
	today := Today(s.clock(), s.Location)
	due, err := s.Placements.ListPlacements(ctx, PlacementFilter{
		Statuses:       []PlacementStatus{StatusScheduled},
		From:           today,
		To:             today.AddDays(daysAhead),
		ReminderUnsent: true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list placements due for reminder: %w", err)
	}

	sent := 0
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		r, err := s.recipientFor(ctx, p)
		if err != nil || r.customer.Email == "" {
			s.logger().Warn("skipping reminder without recipient",
				zap.String("placement_id", string(p.ID)), zap.Error(err))
			continue
		}
		n := Notification{
			Recipient: r.customer.Email,
			Subject:   fmt.Sprintf("Flags going up for %s on %s", r.holiday, p.PlacementDate),
			Message: fmt.Sprintf("Hi %s,\n\nWe will place your flags at %s on %s. They come down on %s.\n",
				r.customer.Name, p.Address(r.customer.Address), p.PlacementDate, p.RemovalDate),
		}
		if err := s.notifier().Notify(ctx, n); err != nil {
			s.logger().Warn("reminder failed", zap.String("placement_id", string(p.ID)), zap.Error(err))
			continue
		}

		at := s.clock().Now().UTC()
		p.ReminderSentAt = &at
		p.UpdatedAt = at
		if err := s.Placements.UpdatePlacement(ctx, p); err != nil {
			s.logger().Warn("failed to record reminder",
				zap.String("placement_id", string(p.ID)), zap.Error(err))
			continue
		}
		s.metrics().ReminderSent()
		sent++
	}

	if sent > 0 {
		s.logger().Info("reminders sent", zap.Int("count", sent), zap.Int("days_ahead", daysAhead))
	}
	return sent, nil
}

func (s *PlacementService) clock() Clock {
	if s.Clock == nil {
		return SystemClock{}
	}
	return s.Clock
}

func (s *PlacementService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *PlacementService) metrics() Recorder {
	if s.Metrics == nil {
		return NopRecorder{}
	}
	return s.Metrics
}

func (s *PlacementService) notifier() Notifier {
	if s.Notifier == nil {
		return NopNotifier{}
	}
	return s.Notifier
}
