// Package store provides an in-memory schedule.Store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	holidays      map[schedule.HolidayID]schedule.Holiday
	customers     map[schedule.CustomerID]schedule.Customer
	products      map[schedule.ProductID]schedule.FlagProduct
	subscriptions map[schedule.SubscriptionID]schedule.Subscription
	placements    map[schedule.PlacementID]schedule.FlagPlacement
	byKey         map[schedule.PlacementKey]schedule.PlacementID

	// FailCreate, when set, is consulted before each CreatePlacement. A non-nil
	// return is handed back to the caller and nothing is stored.
	FailCreate func(p schedule.FlagPlacement) error
}

func NewMemory() *Memory {
	m := &Memory{}
	m.Reset()
	return m
}

// Reset drops every record.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = make(map[schedule.HolidayID]schedule.Holiday)
	m.customers = make(map[schedule.CustomerID]schedule.Customer)
	m.products = make(map[schedule.ProductID]schedule.FlagProduct)
	m.subscriptions = make(map[schedule.SubscriptionID]schedule.Subscription)
	m.placements = make(map[schedule.PlacementID]schedule.FlagPlacement)
	m.byKey = make(map[schedule.PlacementKey]schedule.PlacementID)
}

var (
	_ schedule.Store        = (*Memory)(nil)
	_ schedule.CatalogStore = (*Memory)(nil)
)

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) GetHoliday(_ context.Context, id schedule.HolidayID) (*schedule.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.holidays[id]
	if !ok {
		return nil, schedule.ErrHolidayNotFound
	}
	return &h, nil
}

func (m *Memory) ListHolidays(_ context.Context, activeOnly bool) ([]schedule.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		if activeOnly && !h.Active {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) SaveHoliday(_ context.Context, h schedule.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.holidays {
		if id != h.ID && strings.EqualFold(other.Slug, h.Slug) {
			return &schedule.ValidationError{Field: "slug", Reason: "slug already in use"}
		}
	}
	m.holidays[h.ID] = h
	return nil
}

// =============================================================================
// CUSTOMERS / PRODUCTS
// =============================================================================

func (m *Memory) GetCustomer(_ context.Context, id schedule.CustomerID) (*schedule.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, schedule.ErrCustomerNotFound
	}
	return &c, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c schedule.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]schedule.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SaveProduct(_ context.Context, p schedule.FlagProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id schedule.ProductID) (*schedule.FlagProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, schedule.ErrProductNotFound
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context, activeOnly bool) ([]schedule.FlagProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.FlagProduct, 0, len(m.products))
	for _, p := range m.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func (m *Memory) GetSubscription(_ context.Context, id schedule.SubscriptionID) (*schedule.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, schedule.ErrSubscriptionNotFound
	}
	s = cloneSubscription(s)
	return &s, nil
}

func (m *Memory) ListSubscriptions(_ context.Context, status schedule.SubscriptionStatus) ([]schedule.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterSubscriptions(func(s schedule.Subscription) bool {
		return status == "" || s.Status == status
	}), nil
}

func (m *Memory) ListSubscriptionsForHoliday(_ context.Context, holidayID schedule.HolidayID, status schedule.SubscriptionStatus) ([]schedule.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterSubscriptions(func(s schedule.Subscription) bool {
		return (status == "" || s.Status == status) && s.SelectsHoliday(holidayID)
	}), nil
}

func (m *Memory) filterSubscriptions(keep func(schedule.Subscription) bool) []schedule.Subscription {
	var out []schedule.Subscription
	for _, s := range m.subscriptions {
		if keep(s) {
			out = append(out, cloneSubscription(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) SaveSubscription(_ context.Context, s schedule.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.ID] = cloneSubscription(s)
	return nil
}

func cloneSubscription(s schedule.Subscription) schedule.Subscription {
	s.HolidayIDs = append([]schedule.HolidayID(nil), s.HolidayIDs...)
	s.Items = append([]schedule.SubscriptionItem(nil), s.Items...)
	return s
}

// =============================================================================
// PLACEMENTS
// =============================================================================

func (m *Memory) CreatePlacement(_ context.Context, p schedule.FlagPlacement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreate != nil {
		if err := m.FailCreate(p); err != nil {
			return err
		}
	}
	if p.PlannedDate.IsZero() {
		p.PlannedDate = p.PlacementDate
	}
	key := p.Key()
	if _, exists := m.byKey[key]; exists {
		return schedule.ErrDuplicatePlacement
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m.placements[p.ID] = p
	m.byKey[key] = p.ID
	return nil
}

func (m *Memory) PlacementExists(_ context.Context, key schedule.PlacementKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byKey[key]
	return ok, nil
}

func (m *Memory) GetPlacement(_ context.Context, id schedule.PlacementID) (*schedule.FlagPlacement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.placements[id]
	if !ok {
		return nil, schedule.ErrPlacementNotFound
	}
	return &p, nil
}

func (m *Memory) ListPlacements(_ context.Context, filter schedule.PlacementFilter) ([]schedule.FlagPlacement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.FlagPlacement
	for _, p := range m.placements {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacementDate.Equal(out[j].PlacementDate) {
			return out[i].PlacementDate.Before(out[j].PlacementDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdatePlacement is a compare-and-swap on Version.
func (m *Memory) UpdatePlacement(_ context.Context, p schedule.FlagPlacement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.placements[p.ID]
	if !ok {
		return schedule.ErrPlacementNotFound
	}
	if stored.Version != p.Version {
		return schedule.ErrConcurrentModification
	}
	// The scheduling tuple is immutable.
	p.PlannedDate = stored.PlannedDate
	p.Version = stored.Version + 1
	m.placements[p.ID] = p
	return nil
}
