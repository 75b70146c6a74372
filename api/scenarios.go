/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates holidays, a customer, a flag
	product and a subscription, then lets the planner generate placements.

AVAILABLE SCENARIOS:

	independence-day:  July 4 (2 days before, 3 after), mid-year subscription.
	                   One placement: up 2025-07-02, down 2025-07-07.
	year-boundary:     Dec 2025 - Feb 2026 subscription covering Pearl Harbor
	                   Remembrance Day and Presidents' Day.
	special-election:  Sparse holiday dated only in 2026 and 2031.

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create holidays via factory
 3. Create customer and product
 4. Create an active subscription (planner runs immediately)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "independence-day"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler dependencies
  - holidays/presets.go: Holiday JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/injoimydesign/flag-community/holidays"
	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "independence-day",
		Name:        "Independence Day",
		Description: "Single July 4 placement for a June-December subscription",
	},
	{
		ID:          "year-boundary",
		Name:        "Year Boundary",
		Description: "Subscription spanning New Year with December and February holidays",
	},
	{
		ID:          "special-election",
		Name:        "Special Election",
		Description: "Sparse holiday that only occurs in 2026 and 2031",
	},
}

type scenario struct {
	holidays []string
	sub      schedule.Subscription
}

func scenarioData(id string) (*scenario, bool) {
	d := schedule.MustParseDate
	switch id {
	case "independence-day":
		return &scenario{
			holidays: []string{holidays.IndependenceDayJSON(2, 3)},
			sub: schedule.Subscription{
				ID:         "sub-independence",
				StartDate:  d("2025-06-01"),
				EndDate:    d("2025-12-31"),
				HolidayIDs: []schedule.HolidayID{"independence-day"},
			},
		}, true
	case "year-boundary":
		return &scenario{
			holidays: []string{holidays.PearlHarborRemembranceDayJSON(2, 1), holidays.PresidentsDayJSON(2, 1)},
			sub: schedule.Subscription{
				ID:         "sub-winter",
				StartDate:  d("2025-12-01"),
				EndDate:    d("2026-02-28"),
				HolidayIDs: []schedule.HolidayID{"pearl-harbor-remembrance-day", "presidents-day"},
			},
		}, true
	case "special-election":
		return &scenario{
			holidays: []string{holidays.SpecialJSON("Special Election Day", 1, 1, "2026-11-03", "2031-11-04")},
			sub: schedule.Subscription{
				ID:         "sub-election",
				StartDate:  d("2026-01-01"),
				EndDate:    d("2027-12-31"),
				HolidayIDs: []schedule.HolidayID{"special-election-day"},
			},
		}, true
	}
	return nil, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the database and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	sc, ok := scenarioData(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q not found", req.ScenarioID))
		return
	}
	if h.Reset == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios are disabled", nil)
		return
	}

	resp, err := h.loadScenario(r.Context(), sc)
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Reset == nil {
		writeError(w, http.StatusNotImplemented, "Reset is disabled", nil)
		return
	}
	if err := h.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, sc *scenario) (*SubscriptionResponse, error) {
	if err := h.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	now := h.Clock.Now().UTC()

	for _, js := range sc.holidays {
		hol, err := h.HolidayFactory.ParseHoliday(js)
		if err != nil {
			return nil, err
		}
		hol.CreatedAt, hol.UpdatedAt = now, now
		if err := h.Store.SaveHoliday(ctx, *hol); err != nil {
			return nil, err
		}
	}

	customer := schedule.Customer{
		ID:        "cust-demo",
		Name:      "Jordan Rivera",
		Email:     "jordan@example.com",
		Address:   "401 Liberty Ave",
		CreatedAt: now,
	}
	if err := h.Store.SaveCustomer(ctx, customer); err != nil {
		return nil, err
	}
	product := schedule.FlagProduct{
		ID:        "flag-3x5",
		Name:      "3x5 Nylon Flag",
		Size:      "3x5",
		Price:     decimal.RequireFromString("25.00"),
		Active:    true,
		CreatedAt: now,
	}
	if err := h.Store.SaveProduct(ctx, product); err != nil {
		return nil, err
	}

	sub := sc.sub
	sub.CustomerID = customer.ID
	sub.Status = schedule.SubscriptionActive
	sub.Items = []schedule.SubscriptionItem{{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}}

	created, report, err := h.Subscriptions.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &SubscriptionResponse{
		Subscription: toSubscriptionDTO(*created),
		Generation:   toReportDTO(report),
	}, nil
}
