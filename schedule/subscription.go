package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// SUBSCRIPTION LIFECYCLE - create, cancel, reactivate, renew
// =============================================================================
//
//   pending ──activate──▶ active ──cancel──▶ cancelled
//                           ▲                   │
//                           └────reactivate─────┘
//
// Every path into "active" runs the planner. Cancel skips the future scheduled
// placements; it never deletes them. Renew creates a new active subscription
// one year later with the same holidays and products.

// CancelSkipReason is recorded on placements skipped by a cancellation.
const CancelSkipReason = "subscription cancelled"

type SubscriptionService struct {
	Subscriptions SubscriptionStore
	Placements    *PlacementService
	Planner       *Planner
	Clock         Clock
	Logger        *zap.Logger

	// Location defines "today" for cancellation. nil means UTC.
	Location *time.Location

	NewID func() SubscriptionID
}

func NewSubscriptionService(store SubscriptionStore, placements *PlacementService, planner *Planner, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		Subscriptions: store,
		Placements:    placements,
		Planner:       planner,
		Clock:         SystemClock{},
		Logger:        logger,
		NewID:         func() SubscriptionID { return SubscriptionID(uuid.NewString()) },
	}
}

// Create validates and stores sub. An empty status defaults to pending; an
// active subscription gets its placements generated immediately.
func (s *SubscriptionService) Create(ctx context.Context, sub Subscription) (*Subscription, *GenerationReport, error) {
	if sub.Status == "" {
		sub.Status = SubscriptionPending
	}
	if sub.Status == SubscriptionCancelled {
		return nil, nil, &ValidationError{Field: "status", Reason: "cannot create a cancelled subscription"}
	}
	if err := sub.Validate(); err != nil {
		return nil, nil, err
	}
	if sub.ID == "" {
		sub.ID = s.newID()
	}
	now := s.clock().Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.HolidayIDs = dedupeHolidays(sub.HolidayIDs)

	if err := s.Subscriptions.SaveSubscription(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	report, err := s.Planner.GeneratePlacements(ctx, sub)
	if err != nil {
		return &sub, nil, err
	}
	return &sub, report, nil
}

// Activate moves a pending subscription to active and generates placements.
func (s *SubscriptionService) Activate(ctx context.Context, id SubscriptionID) (*Subscription, *GenerationReport, error) {
	return s.activate(ctx, id, SubscriptionPending)
}

// Reactivate moves a cancelled subscription back to active and generates the
// placements still ahead. Placements skipped by the cancellation stay skipped.
func (s *SubscriptionService) Reactivate(ctx context.Context, id SubscriptionID) (*Subscription, *GenerationReport, error) {
	return s.activate(ctx, id, SubscriptionCancelled)
}

func (s *SubscriptionService) activate(ctx context.Context, id SubscriptionID, from SubscriptionStatus) (*Subscription, *GenerationReport, error) {
	sub, err := s.Subscriptions.GetSubscription(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sub.Status != from {
		return nil, nil, fmt.Errorf("%w: subscription %s is %s, not %s", ErrSubscriptionState, id, sub.Status, from)
	}
	sub.Status = SubscriptionActive
	sub.CancelledAt = nil
	sub.UpdatedAt = s.clock().Now().UTC()
	if err := s.Subscriptions.SaveSubscription(ctx, *sub); err != nil {
		return nil, nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.logger().Info("subscription activated",
		zap.String("subscription_id", string(id)),
		zap.String("from", string(from)))

	report, err := s.Planner.GeneratePlacements(ctx, *sub)
	if err != nil {
		return sub, nil, err
	}
	return sub, report, nil
}

// Cancel marks the subscription cancelled and skips every scheduled placement
// whose placement date is after today. Returns the per-placement results.
func (s *SubscriptionService) Cancel(ctx context.Context, id SubscriptionID) (*Subscription, []BulkResult, error) {
	sub, err := s.Subscriptions.GetSubscription(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if sub.Status == SubscriptionCancelled {
		return nil, nil, fmt.Errorf("%w: subscription %s is already cancelled", ErrSubscriptionState, id)
	}

	now := s.clock().Now().UTC()
	sub.Status = SubscriptionCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.Subscriptions.SaveSubscription(ctx, *sub); err != nil {
		return nil, nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	scheduled, err := s.Placements.List(ctx, PlacementFilter{
		SubscriptionID: id,
		Statuses:       []PlacementStatus{StatusScheduled},
	})
	if err != nil {
		return sub, nil, fmt.Errorf("failed to list placements: %w", err)
	}

	today := Today(s.clock(), s.Location)
	var ids []PlacementID
	for _, p := range scheduled {
		if p.PlacementDate.After(today) {
			ids = append(ids, p.ID)
		}
	}
	results := s.Placements.Bulk(ctx, ids, Action{Kind: ActionSkip, Reason: CancelSkipReason})
	for _, r := range results {
		if !r.OK {
			s.logger().Warn("failed to skip placement on cancel",
				zap.String("subscription_id", string(id)),
				zap.String("placement_id", string(r.ID)),
				zap.String("reason", r.Reason))
		}
	}

	s.logger().Info("subscription cancelled",
		zap.String("subscription_id", string(id)),
		zap.Int("placements_skipped", countOK(results)))
	return sub, results, nil
}

// Renew creates the next term: a new active subscription whose dates are
// shifted one year, copying the selected holidays and products.
func (s *SubscriptionService) Renew(ctx context.Context, id SubscriptionID) (*Subscription, *GenerationReport, error) {
	prev, err := s.Subscriptions.GetSubscription(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if prev.Status == SubscriptionPending {
		return nil, nil, fmt.Errorf("%w: subscription %s is pending", ErrSubscriptionState, id)
	}

	now := s.clock().Now().UTC()
	next := Subscription{
		ID:            s.newID(),
		CustomerID:    prev.CustomerID,
		Status:        SubscriptionActive,
		StartDate:     prev.StartDate.AddYears(1),
		EndDate:       prev.EndDate.AddYears(1),
		HolidayIDs:    append([]HolidayID(nil), prev.HolidayIDs...),
		Items:         append([]SubscriptionItem(nil), prev.Items...),
		RenewedFromID: prev.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := next.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.Subscriptions.SaveSubscription(ctx, next); err != nil {
		return nil, nil, fmt.Errorf("failed to save renewal: %w", err)
	}

	s.logger().Info("subscription renewed",
		zap.String("subscription_id", string(next.ID)),
		zap.String("renewed_from", string(prev.ID)),
		zap.String("period", next.Period().String()))

	report, err := s.Planner.GeneratePlacements(ctx, next)
	if err != nil {
		return &next, nil, err
	}
	return &next, report, nil
}

func dedupeHolidays(ids []HolidayID) []HolidayID {
	seen := make(map[HolidayID]bool, len(ids))
	out := make([]HolidayID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func countOK(results []BulkResult) int {
	n := 0
	for _, r := range results {
		if r.OK {
			n++
		}
	}
	return n
}

func (s *SubscriptionService) clock() Clock {
	if s.Clock == nil {
		return SystemClock{}
	}
	return s.Clock
}

func (s *SubscriptionService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *SubscriptionService) newID() SubscriptionID {
	if s.NewID == nil {
		return SubscriptionID(uuid.NewString())
	}
	return s.NewID()
}
