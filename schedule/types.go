/*
Package schedule provides the flag placement scheduling core.

PURPOSE:
  Customers subscribe to have flags placed at their property before patriotic
  holidays and removed afterwards. This package turns subscriptions and holiday
  definitions into concrete FlagPlacement records and governs each record's
  lifecycle. Everything else (HTTP, SQL, email) lives in other packages and talks
  to this one through the interfaces in store.go and notify.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Holiday:       A named recurring (annual) or sparse (special) calendar event
  - Recurrence:    Tagged variant describing how a holiday's date is found per year
  - Subscription:  A customer's commitment to flag service over a date range
  - FlagPlacement: One scheduled (or completed) placement/removal event

DESIGN PRINCIPLES:
  1. Pure core: resolver, window and state machine have no I/O
  2. Idempotence: the scheduling tuple (subscription, holiday, product, date)
     identifies a placement; generation never duplicates it
  3. Auditability: transitions record who/when and append to notes, never overwrite
  4. Type Safety: distinct ID types prevent mixing holiday/subscription IDs

USAGE:
  holiday := schedule.Holiday{
      ID:                  "july-4",
      Name:                "Independence Day",
      Recurrence:          schedule.FixedDate{Month: time.July, Day: 4},
      PlacementDaysBefore: 2,
      RemovalDaysAfter:    3,
      Active:              true,
  }
  date, ok := schedule.ResolveDate(holiday, 2025) // 2025-07-04, true

SEE ALSO:
  - calendar.go:   Holiday Calendar Resolver
  - window.go:     Placement Window Calculator
  - planner.go:    Subscription Placement Planner
  - transition.go: Placement State Machine
*/
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HolidayID string
type SubscriptionID string
type PlacementID string
type ProductID string
type CustomerID string

// =============================================================================
// HOLIDAY
// =============================================================================

type RecurrenceKind string

const (
	RecurrenceAnnual  RecurrenceKind = "annual"
	RecurrenceSpecial RecurrenceKind = "special"
)

// Recurrence describes how a holiday's date is determined for a given year.
// The set of implementations is closed: FixedDate, NthWeekday, SpecialDates.
type Recurrence interface {
	Kind() RecurrenceKind
	Validate() error
	isRecurrence()
}

// FixedDate is an annual rule on the same month/day every year (e.g. July 4).
type FixedDate struct {
	Month time.Month
	Day   int
}

// LastWeek as NthWeekday.Nth selects the last matching weekday of the month.
const LastWeek = -1

// NthWeekday is an annual rule such as "last Monday of May" (Nth = LastWeek)
// or "third Monday of February" (Nth = 3). Nth is 1..4 or LastWeek so every
// year has exactly one match.
type NthWeekday struct {
	Month   time.Month
	Weekday time.Weekday
	Nth     int
}

// SpecialDate pins a holiday to an explicit date in one year.
type SpecialDate struct {
	Year int
	Date Date
}

// SpecialDates is a sparse list of explicit per-year dates.
// Years absent from the list have no occurrence.
type SpecialDates struct {
	Dates []SpecialDate
}

func (FixedDate) Kind() RecurrenceKind    { return RecurrenceAnnual }
func (NthWeekday) Kind() RecurrenceKind   { return RecurrenceAnnual }
func (SpecialDates) Kind() RecurrenceKind { return RecurrenceSpecial }

func (FixedDate) isRecurrence()    {}
func (NthWeekday) isRecurrence()   {}
func (SpecialDates) isRecurrence() {}

func (r FixedDate) Validate() error {
	if r.Month < time.January || r.Month > time.December {
		return &ValidationError{Field: "recurrence.month", Reason: "month must be 1-12"}
	}
	// Feb 29 is allowed; non-leap years fall on Mar 1.
	if r.Day < 1 || r.Day > maxDayOfMonth(r.Month) {
		return &ValidationError{Field: "recurrence.day", Reason: fmt.Sprintf("day %d is not valid for %s", r.Day, r.Month)}
	}
	return nil
}

func (r NthWeekday) Validate() error {
	if r.Month < time.January || r.Month > time.December {
		return &ValidationError{Field: "recurrence.month", Reason: "month must be 1-12"}
	}
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return &ValidationError{Field: "recurrence.weekday", Reason: "weekday must be 0-6"}
	}
	if r.Nth != LastWeek && (r.Nth < 1 || r.Nth > 4) {
		return &ValidationError{Field: "recurrence.nth", Reason: "nth must be 1-4 or -1 (last)"}
	}
	return nil
}

func (r SpecialDates) Validate() error {
	seen := make(map[int]bool, len(r.Dates))
	for _, sd := range r.Dates {
		if sd.Date.IsZero() {
			return &ValidationError{Field: "recurrence.dates", Reason: fmt.Sprintf("missing date for year %d", sd.Year)}
		}
		if sd.Date.Year() != sd.Year {
			return &ValidationError{Field: "recurrence.dates", Reason: fmt.Sprintf("date %s is not in year %d", sd.Date, sd.Year)}
		}
		if seen[sd.Year] {
			return &ValidationError{Field: "recurrence.dates", Reason: fmt.Sprintf("year %d listed twice", sd.Year)}
		}
		seen[sd.Year] = true
	}
	return nil
}

func maxDayOfMonth(m time.Month) int {
	switch m {
	case time.February:
		return 29
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// Holiday is a named calendar event flags are displayed for.
// Read-only to the scheduler; operators edit it through the API.
type Holiday struct {
	ID                  HolidayID
	Name                string
	Slug                string
	Recurrence          Recurrence
	PlacementDaysBefore int
	RemovalDaysAfter    int
	Active              bool
	SortOrder           int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (h Holiday) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if h.PlacementDaysBefore < 0 {
		return &ValidationError{Field: "placement_days_before", Reason: "must be >= 0"}
	}
	if h.RemovalDaysAfter < 0 {
		return &ValidationError{Field: "removal_days_after", Reason: "must be >= 0"}
	}
	if h.Recurrence == nil {
		return &ValidationError{Field: "recurrence", Reason: "recurrence is required"}
	}
	return h.Recurrence.Validate()
}

// Slugify derives a stable identifier from a holiday name.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// =============================================================================
// CUSTOMER / PRODUCT - External records the scheduler reads
// =============================================================================

type Customer struct {
	ID        CustomerID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

type FlagProduct struct {
	ID        ProductID
	Name      string
	Size      string
	Price     decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionPending, SubscriptionActive, SubscriptionCancelled:
		return true
	}
	return false
}

// SubscriptionItem is one subscribed flag product.
type SubscriptionItem struct {
	ProductID ProductID
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i SubscriptionItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Subscription struct {
	ID            SubscriptionID
	CustomerID    CustomerID
	Status        SubscriptionStatus
	StartDate     Date
	EndDate       Date
	HolidayIDs    []HolidayID
	Items         []SubscriptionItem
	RenewedFromID SubscriptionID
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Period is the paid service window [StartDate, EndDate].
func (s Subscription) Period() Period {
	return Period{Start: s.StartDate, End: s.EndDate}
}

func (s Subscription) SelectsHoliday(id HolidayID) bool {
	for _, h := range s.HolidayIDs {
		if h == id {
			return true
		}
	}
	return false
}

func (s Subscription) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (s Subscription) Validate() error {
	if s.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Reason: "customer is required"}
	}
	if !s.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s.Status)}
	}
	if s.StartDate.IsZero() || s.EndDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "start and end dates are required"}
	}
	if s.EndDate.Before(s.StartDate) {
		return ErrInvalidPeriod
	}
	if len(s.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one flag product is required"}
	}
	for _, item := range s.Items {
		if item.ProductID == "" {
			return &ValidationError{Field: "items.product_id", Reason: "product is required"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: "items.quantity", Reason: "quantity must be positive"}
		}
	}
	return nil
}

// =============================================================================
// FLAG PLACEMENT
// =============================================================================

type PlacementStatus string

const (
	StatusScheduled PlacementStatus = "scheduled"
	StatusPlaced    PlacementStatus = "placed"
	StatusRemoved   PlacementStatus = "removed"
	StatusSkipped   PlacementStatus = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s PlacementStatus) Terminal() bool {
	return s == StatusRemoved || s == StatusSkipped
}

func (s PlacementStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusPlaced, StatusRemoved, StatusSkipped:
		return true
	}
	return false
}

// PlacementKey is the scheduling tuple. At most one placement exists per key.
type PlacementKey struct {
	SubscriptionID SubscriptionID
	HolidayID      HolidayID
	ProductID      ProductID
	Date           Date
}

func (k PlacementKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.SubscriptionID, k.HolidayID, k.ProductID, k.Date)
}

type FlagPlacement struct {
	ID             PlacementID
	SubscriptionID SubscriptionID
	HolidayID      HolidayID
	ProductID      ProductID
	Quantity       int

	// PlannedDate is the date the planner computed; it keys the placement and
	// does not move when the placement is rescheduled.
	PlannedDate   Date
	PlacementDate Date
	RemovalDate   Date

	Status PlacementStatus

	// Audit fields
	PlacedAt   *time.Time
	PlacedBy   string
	RemovedAt  *time.Time
	RemovedBy  string
	SkippedAt  *time.Time
	SkipReason string

	ReminderSentAt *time.Time
	Notes          string

	// SiteAddress overrides the customer's address when set.
	SiteAddress string

	// Version increments on every update (optimistic concurrency).
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p FlagPlacement) Key() PlacementKey {
	date := p.PlannedDate
	if date.IsZero() {
		date = p.PlacementDate
	}
	return PlacementKey{
		SubscriptionID: p.SubscriptionID,
		HolidayID:      p.HolidayID,
		ProductID:      p.ProductID,
		Date:           date,
	}
}

// Address returns the placement site: the override, else fallback.
func (p FlagPlacement) Address(fallback string) string {
	if strings.TrimSpace(p.SiteAddress) != "" {
		return p.SiteAddress
	}
	return fallback
}
