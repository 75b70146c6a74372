/*
planner.go - Subscription Placement Planner

PURPOSE:
  Turns an active subscription into scheduled FlagPlacement records: one per
  (selected holiday, year, flag product) whose placement date falls inside the
  subscription's paid window.

ALGORITHM:
  1. Guard: only active subscriptions generate placements
  2. Years examined: every calendar year the subscription touches
  3. For each selected, active holiday and year:
     a. resolve the holiday date (skip silently if it does not occur)
     b. compute the placement/removal window
     c. skip if the placement date is outside [start_date, end_date]
     d. for each product item: skip if the tuple exists, else create "scheduled"
  4. Return what was newly created

IDEMPOTENCE:
  Running the planner twice creates nothing the second time. Existence is
  checked right before each insert, and the store's unique constraint on the
  tuple catches concurrent planners; a duplicate insert counts as "existing".

FAILURES:
  A persistence failure for one candidate is logged with its full tuple and
  recorded in the report; the remaining candidates are still processed.
  Re-running the planner reconciles partial runs.

ENTRY POINTS:
  GeneratePlacements(sub)            one subscription value
  GenerateForSubscription(id)        load then generate
  GenerateForHoliday(holidayID)      every active subscription selecting it
  GenerateAll()                      every active subscription (nightly job)

SEE ALSO:
  - calendar.go / window.go: date computation
  - store.go: uniqueness contract
*/
package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// CANDIDATE ENUMERATION (pure)
// =============================================================================

// Candidate is one placement the planner wants to exist.
type Candidate struct {
	Key      PlacementKey
	Quantity int
	Window   Window
}

// Plan enumerates the candidates for sub over holidays. Holidays the
// subscription did not select, and inactive holidays, are ignored.
// The result is ordered by holiday (as given), year, then item order.
func Plan(sub Subscription, holidays []Holiday) []Candidate {
	if sub.Status != SubscriptionActive {
		return nil
	}
	period := sub.Period()
	if !period.Valid() {
		return nil
	}

	var out []Candidate
	index := make(map[PlacementKey]int)

	seen := make(map[HolidayID]bool, len(holidays))
	for _, h := range holidays {
		if seen[h.ID] || !h.Active || !sub.SelectsHoliday(h.ID) {
			continue
		}
		seen[h.ID] = true
		for _, year := range period.Years() {
			date, ok := ResolveDate(h, year)
			if !ok {
				continue
			}
			w, err := ComputeWindow(date, h.PlacementDaysBefore, h.RemovalDaysAfter)
			if err != nil {
				continue
			}
			if !period.Contains(w.PlacementDate) {
				continue
			}
			for _, item := range sub.Items {
				key := PlacementKey{
					SubscriptionID: sub.ID,
					HolidayID:      h.ID,
					ProductID:      item.ProductID,
					Date:           w.PlacementDate,
				}
				// The same product listed twice is one placement.
				if i, dup := index[key]; dup {
					out[i].Quantity += item.Quantity
					continue
				}
				index[key] = len(out)
				out = append(out, Candidate{Key: key, Quantity: item.Quantity, Window: w})
			}
		}
	}
	return out
}

// =============================================================================
// PLANNER - Persists candidates idempotently
// =============================================================================

type Planner struct {
	Holidays      HolidayStore
	Subscriptions SubscriptionStore
	Placements    PlacementStore
	Clock         Clock
	Logger        *zap.Logger
	Metrics       Recorder

	// NewID generates placement IDs. Defaults to UUIDs.
	NewID func() PlacementID
}

// NewPlanner creates a planner over store with system defaults.
func NewPlanner(store Store, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		Holidays:      store,
		Subscriptions: store,
		Placements:    store,
		Clock:         SystemClock{},
		Logger:        logger,
		Metrics:       NopRecorder{},
		NewID:         func() PlacementID { return PlacementID(uuid.NewString()) },
	}
}

// GenerationFailure is one candidate that could not be persisted.
type GenerationFailure struct {
	Key PlacementKey
	Err error
}

// GenerationReport summarizes one planner run.
type GenerationReport struct {
	Subscriptions int
	Created       []FlagPlacement
	Existing      int
	Failures      []GenerationFailure
}

func (r *GenerationReport) merge(other *GenerationReport) {
	r.Subscriptions += other.Subscriptions
	r.Created = append(r.Created, other.Created...)
	r.Existing += other.Existing
	r.Failures = append(r.Failures, other.Failures...)
}

// GeneratePlacements creates the missing placements for sub.
// A non-active subscription is a no-op with an empty report.
func (pl *Planner) GeneratePlacements(ctx context.Context, sub Subscription) (*GenerationReport, error) {
	if sub.Status != SubscriptionActive {
		return &GenerationReport{}, nil
	}

	holidays := make([]Holiday, 0, len(sub.HolidayIDs))
	for _, id := range dedupeHolidays(sub.HolidayIDs) {
		h, err := pl.Holidays.GetHoliday(ctx, id)
		if err != nil {
			// A dangling holiday reference must not block the others.
			pl.logger().Warn("holiday unavailable for generation",
				zap.String("subscription_id", string(sub.ID)),
				zap.String("holiday_id", string(id)),
				zap.Error(err))
			continue
		}
		holidays = append(holidays, *h)
	}

	return pl.generate(ctx, sub, holidays), nil
}

// GenerateForSubscription loads the subscription and generates its placements.
func (pl *Planner) GenerateForSubscription(ctx context.Context, id SubscriptionID) (*GenerationReport, error) {
	sub, err := pl.Subscriptions.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	return pl.GeneratePlacements(ctx, *sub)
}

// GenerateForHoliday generates one holiday's placements for every active
// subscription that selected it.
func (pl *Planner) GenerateForHoliday(ctx context.Context, holidayID HolidayID) (*GenerationReport, error) {
	h, err := pl.Holidays.GetHoliday(ctx, holidayID)
	if err != nil {
		return nil, err
	}
	report := &GenerationReport{}
	if !h.Active {
		return report, nil
	}

	subs, err := pl.Subscriptions.ListSubscriptionsForHoliday(ctx, holidayID, SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for holiday %s: %w", holidayID, err)
	}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.merge(pl.generate(ctx, sub, []Holiday{*h}))
	}
	return report, nil
}

// GenerateAll runs the planner for every active subscription.
func (pl *Planner) GenerateAll(ctx context.Context) (*GenerationReport, error) {
	subs, err := pl.Subscriptions.ListSubscriptions(ctx, SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	report := &GenerationReport{}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := pl.GeneratePlacements(ctx, sub)
		if err != nil {
			return report, err
		}
		report.merge(r)
	}
	return report, nil
}

func (pl *Planner) generate(ctx context.Context, sub Subscription, holidays []Holiday) *GenerationReport {
	started := pl.clock().Now()
	report := &GenerationReport{Subscriptions: 1}

	for _, c := range Plan(sub, holidays) {
		created, err := pl.ensure(ctx, c)
		switch {
		case err != nil:
			pl.logger().Error("failed to persist placement",
				zap.String("subscription_id", string(c.Key.SubscriptionID)),
				zap.String("holiday_id", string(c.Key.HolidayID)),
				zap.String("product_id", string(c.Key.ProductID)),
				zap.String("placement_date", c.Key.Date.String()),
				zap.Error(err))
			pl.metrics().GenerationFailed(c.Key.HolidayID)
			report.Failures = append(report.Failures, GenerationFailure{Key: c.Key, Err: err})
		case created == nil:
			report.Existing++
		default:
			pl.metrics().PlacementGenerated(c.Key.HolidayID)
			report.Created = append(report.Created, *created)
		}
	}

	pl.metrics().GenerationCompleted(pl.clock().Now().Sub(started))
	if len(report.Created) > 0 || len(report.Failures) > 0 {
		pl.logger().Info("placements generated",
			zap.String("subscription_id", string(sub.ID)),
			zap.Int("created", len(report.Created)),
			zap.Int("existing", report.Existing),
			zap.Int("failed", len(report.Failures)))
	}
	return report
}

// ensure creates the placement for c unless it exists. Returns nil, nil when
// the tuple was already scheduled.
func (pl *Planner) ensure(ctx context.Context, c Candidate) (*FlagPlacement, error) {
	exists, err := pl.Placements.PlacementExists(ctx, c.Key)
	if err != nil {
		return nil, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		return nil, nil
	}

	now := pl.clock().Now().UTC()
	p := FlagPlacement{
		ID:             pl.newID(),
		SubscriptionID: c.Key.SubscriptionID,
		HolidayID:      c.Key.HolidayID,
		ProductID:      c.Key.ProductID,
		Quantity:       c.Quantity,
		PlannedDate:    c.Key.Date,
		PlacementDate:  c.Window.PlacementDate,
		RemovalDate:    c.Window.RemovalDate,
		Status:         StatusScheduled,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := pl.Placements.CreatePlacement(ctx, p); err != nil {
		if IsDuplicate(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (pl *Planner) clock() Clock {
	if pl.Clock == nil {
		return SystemClock{}
	}
	return pl.Clock
}

func (pl *Planner) logger() *zap.Logger {
	if pl.Logger == nil {
		return zap.NewNop()
	}
	return pl.Logger
}

func (pl *Planner) metrics() Recorder {
	if pl.Metrics == nil {
		return NopRecorder{}
	}
	return pl.Metrics
}

func (pl *Planner) newID() PlacementID {
	if pl.NewID == nil {
		return PlacementID(uuid.NewString())
	}
	return pl.NewID()
}
