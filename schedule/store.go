/*
store.go - Persistence interfaces consumed by the scheduling core

PURPOSE:
  Defines the boundary between scheduling logic and the database. The core
  reads holidays and subscriptions, and creates / reads / updates placements.

KEY INTERFACES:
  HolidayStore:      Read access to holiday definitions
  SubscriptionStore: Subscriptions, their selected holidays and line items
  PlacementStore:    Create, existence-check-by-tuple, read and update placements
  CustomerStore:     Recipient details for notifications

UNIQUENESS:
  CreatePlacement MUST reject a second placement for the same PlacementKey with
  ErrDuplicatePlacement. The planner's PlacementExists check is only an
  optimization; the store constraint is the authoritative guard when planners
  run concurrently.

OPTIMISTIC CONCURRENCY:
  UpdatePlacement succeeds only if the stored Version equals p.Version, and
  stores p with Version+1. A lost race returns ErrConcurrentModification, so two
  concurrent transitions on one placement cannot both succeed.

NO DELETES:
  Placements are never deleted. Cancelled subscriptions skip them instead.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - schedule/store/memory.go: In-memory for testing
*/
package schedule

import "context"

type HolidayStore interface {
	GetHoliday(ctx context.Context, id HolidayID) (*Holiday, error)

	// ListHolidays returns holidays ordered by SortOrder then Name.
	ListHolidays(ctx context.Context, activeOnly bool) ([]Holiday, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, id SubscriptionID) (*Subscription, error)

	// ListSubscriptions returns subscriptions with the given status ("" = all).
	ListSubscriptions(ctx context.Context, status SubscriptionStatus) ([]Subscription, error)

	// ListSubscriptionsForHoliday returns subscriptions with the given status
	// that selected the holiday.
	ListSubscriptionsForHoliday(ctx context.Context, holidayID HolidayID, status SubscriptionStatus) ([]Subscription, error)

	// SaveSubscription inserts or replaces a subscription with its holidays and items.
	SaveSubscription(ctx context.Context, sub Subscription) error
}

// PlacementFilter narrows ListPlacements. Zero fields do not filter.
type PlacementFilter struct {
	SubscriptionID SubscriptionID
	HolidayID      HolidayID
	Statuses       []PlacementStatus

	// Inclusive placement date range.
	From Date
	To   Date

	// ReminderUnsent keeps only placements without ReminderSentAt.
	ReminderUnsent bool
}

// Matches reports whether p satisfies the filter. Store implementations
// without a query language use it directly.
func (f PlacementFilter) Matches(p FlagPlacement) bool {
	if f.SubscriptionID != "" && p.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.HolidayID != "" && p.HolidayID != f.HolidayID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if p.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && p.PlacementDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && p.PlacementDate.After(f.To) {
		return false
	}
	if f.ReminderUnsent && p.ReminderSentAt != nil {
		return false
	}
	return true
}

type PlacementStore interface {
	// CreatePlacement persists a new placement. Returns ErrDuplicatePlacement
	// if one already exists for p.Key().
	CreatePlacement(ctx context.Context, p FlagPlacement) error

	PlacementExists(ctx context.Context, key PlacementKey) (bool, error)

	GetPlacement(ctx context.Context, id PlacementID) (*FlagPlacement, error)

	// ListPlacements returns matches ordered by PlacementDate then ID.
	ListPlacements(ctx context.Context, filter PlacementFilter) ([]FlagPlacement, error)

	// UpdatePlacement writes p if the stored version equals p.Version.
	UpdatePlacement(ctx context.Context, p FlagPlacement) error
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
}

// Store bundles every interface the services need.
type Store interface {
	HolidayStore
	SubscriptionStore
	PlacementStore
	CustomerStore
}

// CatalogStore is the operator-facing write side: holiday definitions,
// customers and flag products. The scheduling core never writes through it.
type CatalogStore interface {
	// SaveHoliday inserts or replaces a holiday. Slugs are unique.
	SaveHoliday(ctx context.Context, h Holiday) error

	SaveCustomer(ctx context.Context, c Customer) error
	ListCustomers(ctx context.Context) ([]Customer, error)

	SaveProduct(ctx context.Context, p FlagProduct) error
	GetProduct(ctx context.Context, id ProductID) (*FlagProduct, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]FlagProduct, error)
}
