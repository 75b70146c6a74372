/*
handlers.go - HTTP API handlers for the flag placement scheduler

PURPOSE:
  Exposes holidays, subscriptions and placements via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the schedule package.

ENDPOINTS:
  Holidays:
    GET    /api/holidays                 List holidays (?active=true)
    POST   /api/holidays                 Create or replace a holiday from JSON
    POST   /api/holidays/defaults        Add the preset patriotic holidays
    GET    /api/holidays/calendar.ics    Holiday feed (?year=)
    GET    /api/holidays/{id}            Get holiday
    GET    /api/holidays/{id}/dates      Resolve date and window (?year=)
    POST   /api/holidays/{id}/generate   Plan placements for every active subscriber

  Catalog:
    GET/POST /api/customers, GET/POST /api/products

  Subscriptions:
    GET    /api/subscriptions            List (?status=)
    POST   /api/subscriptions            Create (active ones are planned at once)
    GET    /api/subscriptions/{id}
    POST   /api/subscriptions/{id}/generate|activate|cancel|reactivate|renew
    GET    /api/subscriptions/{id}/placements

  Placements:
    GET    /api/placements               List (?status=&from=&to=&holiday_id=&subscription_id=)
    GET    /api/placements/calendar.ics  Crew feed, same filters
    POST   /api/placements/bulk          Batch transition, per-item results
    GET    /api/placements/{id}
    POST   /api/placements/{id}/place|remove|skip|reschedule

  Admin:
    POST   /api/admin/reminders          Send due reminders now

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Holiday, subscription, placement and catalog persistence
  - Placements / Subscriptions / Planner: Domain services
  - HolidayFactory: JSON to Holiday conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Illegal transition, subscription state, concurrent modification
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The X-Actor-ID header is trusted as the crew member.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/injoimydesign/flag-community/factory"
	"github.com/injoimydesign/flag-community/holidays"
	"github.com/injoimydesign/flag-community/ics"
	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs.
type Store interface {
	schedule.Store
	schedule.CatalogStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          Store
	Placements     *schedule.PlacementService
	Subscriptions  *schedule.SubscriptionService
	Planner        *schedule.Planner
	HolidayFactory *factory.HolidayFactory
	Logger         *zap.Logger
	Clock          schedule.Clock
	Location       *time.Location

	// ReminderDaysAhead is used when POST /api/admin/reminders has no body.
	ReminderDaysAhead int

	// Reset clears all data before a scenario loads. nil disables scenarios.
	Reset func(ctx context.Context) error

	validate *validator.Validate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over store and the services built on it.
func NewHandler(store Store, placements *schedule.PlacementService, subscriptions *schedule.SubscriptionService, planner *schedule.Planner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:             store,
		Placements:        placements,
		Subscriptions:     subscriptions,
		Planner:           planner,
		HolidayFactory:    factory.NewHolidayFactory(),
		Logger:            logger,
		Clock:             schedule.SystemClock{},
		ReminderDaysAhead: 2,
		validate:          validator.New(),
	}
}

func (h *Handler) today() schedule.Date {
	return schedule.Today(h.Clock, h.Location)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListHolidays(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]factory.HolidayJSON, len(list))
	for i, hol := range list {
		dtos[i] = h.HolidayFactory.ToJSON(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetHoliday returns one holiday.
// GET /api/holidays/{id}
func (h *Handler) GetHoliday(w http.ResponseWriter, r *http.Request) {
	hol, err := h.Store.GetHoliday(r.Context(), schedule.HolidayID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, h.HolidayFactory.ToJSON(*hol))
}

// CreateHoliday creates or replaces a holiday definition.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req factory.HolidayJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	hol, err := h.HolidayFactory.FromJSON(req)
	if err != nil {
		writeDomainError(w, "Invalid holiday", err)
		return
	}
	now := h.Clock.Now().UTC()
	hol.CreatedAt, hol.UpdatedAt = now, now
	if existing, err := h.Store.GetHoliday(r.Context(), hol.ID); err == nil {
		hol.CreatedAt = existing.CreatedAt
	}
	if err := h.Store.SaveHoliday(r.Context(), *hol); err != nil {
		writeDomainError(w, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.HolidayFactory.ToJSON(*hol))
}

// AddDefaultHolidays stores the preset holidays that are not defined yet.
// POST /api/holidays/defaults
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	added := []factory.HolidayJSON{}
	for _, js := range holidays.Defaults() {
		hol, err := h.HolidayFactory.ParseHoliday(js)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Invalid preset", err)
			return
		}
		if _, err := h.Store.GetHoliday(ctx, hol.ID); err == nil {
			continue
		}
		now := h.Clock.Now().UTC()
		hol.CreatedAt, hol.UpdatedAt = now, now
		if err := h.Store.SaveHoliday(ctx, *hol); err != nil {
			writeDomainError(w, "Failed to save preset", err)
			return
		}
		added = append(added, h.HolidayFactory.ToJSON(*hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added, "count": len(added)})
}

// HolidayDates resolves a holiday for one year.
// GET /api/holidays/{id}/dates?year=2026
func (h *Handler) HolidayDates(w http.ResponseWriter, r *http.Request) {
	hol, err := h.Store.GetHoliday(r.Context(), schedule.HolidayID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get holiday", err)
		return
	}
	year, err := yearParam(r, h.today().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	dto := HolidayDatesDTO{HolidayID: string(hol.ID), Year: year}
	if date, ok := schedule.ResolveDate(*hol, year); ok {
		win, err := schedule.ComputeWindow(date, hol.PlacementDaysBefore, hol.RemovalDaysAfter)
		if err != nil {
			writeDomainError(w, "Invalid holiday offsets", err)
			return
		}
		dto.Occurs = true
		dto.HolidayDate = win.HolidayDate.String()
		dto.PlacementDate = win.PlacementDate.String()
		dto.RemovalDate = win.RemovalDate.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// GenerateForHoliday plans placements for every active subscription that
// selected the holiday.
// POST /api/holidays/{id}/generate
func (h *Handler) GenerateForHoliday(w http.ResponseWriter, r *http.Request) {
	report, err := h.Planner.GenerateForHoliday(r.Context(), schedule.HolidayID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to generate placements", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// HolidayCalendar renders the holiday feed.
// GET /api/holidays/calendar.ics?year=2026
func (h *Handler) HolidayCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, h.today().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	list, err := h.Store.ListHolidays(r.Context(), true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	feed, err := ics.HolidayFeed(list, year, h.Clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render calendar", err)
		return
	}
	writeCalendar(w, feed)
}

// =============================================================================
// CUSTOMER / PRODUCT HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}
	dtos := make([]CustomerDTO, len(list))
	for i, c := range list {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	c := schedule.Customer{
		ID:        schedule.CustomerID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		CreatedAt: h.Clock.Now().UTC(),
	}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// ListProducts returns flag products (?active=true).
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListProducts(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, len(list))
	for i, p := range list {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a flag product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = schedule.Slugify(req.Name)
	}
	price := decimal.Zero
	if req.Price != "" {
		var err error
		if price, err = decimal.NewFromString(req.Price); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid price", err)
			return
		}
	}
	p := schedule.FlagProduct{
		ID:        schedule.ProductID(req.ID),
		Name:      req.Name,
		Size:      req.Size,
		Price:     price,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: h.Clock.Now().UTC(),
	}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// =============================================================================
// SUBSCRIPTION HANDLERS
// =============================================================================

// ListSubscriptions returns subscriptions (?status=active).
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	status := schedule.SubscriptionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown status %q", status))
		return
	}
	list, err := h.Store.ListSubscriptions(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}
	dtos := make([]SubscriptionDTO, len(list))
	for i, s := range list {
		dtos[i] = toSubscriptionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSubscription returns one subscription.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Store.GetSubscription(r.Context(), schedule.SubscriptionID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(*sub))
}

// CreateSubscription stores a subscription and plans it when active.
// POST /api/subscriptions
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	sub, err := req.toSubscription()
	if err != nil {
		writeDomainError(w, "Invalid subscription", err)
		return
	}
	if _, err := h.Store.GetCustomer(r.Context(), sub.CustomerID); err != nil {
		writeDomainError(w, "Unknown customer", err)
		return
	}
	created, report, err := h.Subscriptions.Create(r.Context(), sub)
	if err != nil {
		writeDomainError(w, "Failed to create subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, SubscriptionResponse{
		Subscription: toSubscriptionDTO(*created),
		Generation:   toReportDTO(report),
	})
}

// GenerateForSubscription re-runs the planner. Safe to repeat.
// POST /api/subscriptions/{id}/generate
func (h *Handler) GenerateForSubscription(w http.ResponseWriter, r *http.Request) {
	report, err := h.Planner.GenerateForSubscription(r.Context(), schedule.SubscriptionID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to generate placements", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

type lifecycleFunc func(ctx context.Context, id schedule.SubscriptionID) (*schedule.Subscription, *schedule.GenerationReport, error)

func (h *Handler) lifecycle(fn lifecycleFunc, status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, report, err := fn(r.Context(), schedule.SubscriptionID(chi.URLParam(r, "id")))
		if err != nil {
			writeDomainError(w, message, err)
			return
		}
		writeJSON(w, status, SubscriptionResponse{
			Subscription: toSubscriptionDTO(*sub),
			Generation:   toReportDTO(report),
		})
	}
}

// ActivateSubscription moves a pending subscription to active.
func (h *Handler) ActivateSubscription(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(h.Subscriptions.Activate, http.StatusOK, "Failed to activate subscription")(w, r)
}

// ReactivateSubscription moves a cancelled subscription back to active.
func (h *Handler) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(h.Subscriptions.Reactivate, http.StatusOK, "Failed to reactivate subscription")(w, r)
}

// RenewSubscription creates next year's subscription.
func (h *Handler) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(h.Subscriptions.Renew, http.StatusCreated, "Failed to renew subscription")(w, r)
}

// CancelSubscription cancels and skips future scheduled placements.
// POST /api/subscriptions/{id}/cancel
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, results, err := h.Subscriptions.Cancel(r.Context(), schedule.SubscriptionID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to cancel subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{
		Subscription: toSubscriptionDTO(*sub),
		Skipped:      toBulkResultDTOs(results),
	})
}

// SubscriptionPlacements lists one subscription's placements.
func (h *Handler) SubscriptionPlacements(w http.ResponseWriter, r *http.Request) {
	id := schedule.SubscriptionID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetSubscription(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get subscription", err)
		return
	}
	list, err := h.Placements.List(r.Context(), schedule.PlacementFilter{SubscriptionID: id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list placements", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlacementDTOs(list))
}

// =============================================================================
// PLACEMENT HANDLERS
// =============================================================================

// ListPlacements returns placements matching the query filters.
// GET /api/placements?status=scheduled,placed&from=2026-07-01&to=2026-07-31
func (h *Handler) ListPlacements(w http.ResponseWriter, r *http.Request) {
	filter, err := placementFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	list, err := h.Placements.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list placements", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlacementDTOs(list))
}

// GetPlacement returns one placement.
func (h *Handler) GetPlacement(w http.ResponseWriter, r *http.Request) {
	p, err := h.Placements.Get(r.Context(), schedule.PlacementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get placement", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlacementDTO(*p))
}

// Transition returns the handler for one placement action.
// POST /api/placements/{id}/place|remove|skip|reschedule
func (h *Handler) Transition(kind schedule.ActionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransitionRequest
		if r.ContentLength != 0 {
			if !h.decodeAndValidate(w, r, &req) {
				return
			}
		}
		action, err := toAction(kind, req.Actor, req.Notes, req.Reason, req.NewDate, req.NewRemovalDate)
		if err != nil {
			writeDomainError(w, "Invalid request", err)
			return
		}
		p, err := h.Placements.Apply(r.Context(), schedule.PlacementID(chi.URLParam(r, "id")), action)
		if err != nil {
			writeDomainError(w, fmt.Sprintf("Failed to %s placement", kind), err)
			return
		}
		writeJSON(w, http.StatusOK, toPlacementDTO(*p))
	}
}

// BulkTransition applies one action to many placements. A failing item does
// not stop the rest; the response reports each item.
// POST /api/placements/bulk
func (h *Handler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	action, err := toAction(schedule.ActionKind(req.Action), req.Actor, req.Notes, req.Reason, req.NewDate, "")
	if err != nil {
		writeDomainError(w, "Invalid request", err)
		return
	}
	ids := make([]schedule.PlacementID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = schedule.PlacementID(id)
	}

	results := h.Placements.Bulk(r.Context(), ids, action)
	resp := BulkResponse{Results: toBulkResultDTOs(results)}
	for _, res := range results {
		if res.OK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlacementCalendar renders the crew feed for the filtered placements.
// GET /api/placements/calendar.ics
func (h *Handler) PlacementCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := placementFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	list, err := h.Placements.List(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list placements", err)
		return
	}

	names := map[schedule.HolidayID]string{}
	if all, err := h.Store.ListHolidays(ctx, false); err == nil {
		for _, hol := range all {
			names[hol.ID] = hol.Name
		}
	}
	customers := map[schedule.SubscriptionID]*schedule.Customer{}
	entries := make([]ics.PlacementEntry, 0, len(list))
	for _, p := range list {
		c, ok := customers[p.SubscriptionID]
		if !ok {
			c = h.customerFor(ctx, p.SubscriptionID)
			customers[p.SubscriptionID] = c
		}
		entry := ics.PlacementEntry{Placement: p, HolidayName: names[p.HolidayID]}
		if c != nil {
			entry.CustomerName = c.Name
			entry.Address = p.Address(c.Address)
		} else {
			entry.Address = p.SiteAddress
		}
		entries = append(entries, entry)
	}
	writeCalendar(w, ics.PlacementFeed("Flag placements", entries, h.Clock.Now()))
}

func (h *Handler) customerFor(ctx context.Context, id schedule.SubscriptionID) *schedule.Customer {
	sub, err := h.Store.GetSubscription(ctx, id)
	if err != nil {
		return nil
	}
	c, err := h.Store.GetCustomer(ctx, sub.CustomerID)
	if err != nil {
		return nil
	}
	return c
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SendReminders notifies customers of placements in the next days.
// POST /api/admin/reminders {"days_ahead": 2}
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	var req RemindersRequest
	if r.ContentLength != 0 {
		if !h.decodeAndValidate(w, r, &req) {
			return
		}
	}
	days := h.ReminderDaysAhead
	if req.DaysAhead != nil {
		days = *req.DaysAhead
	}
	sent, err := h.Placements.SendReminders(r.Context(), days)
	if err != nil {
		writeDomainError(w, "Failed to send reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, RemindersResponse{Sent: sent})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeCalendar(w http.ResponseWriter, feed string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(feed))
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case schedule.IsNotFound(err):
		status = http.StatusNotFound
	case schedule.IsConflict(err):
		status = http.StatusConflict
	case schedule.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}

// decodeAndValidate writes a 400 and returns false when the body is not
// valid JSON or fails its validator tags.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
			}
			err = errors.New(strings.Join(fields, "; "))
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func toAction(kind schedule.ActionKind, actor, notes, reason, newDate, newRemoval string) (schedule.Action, error) {
	a := schedule.Action{Kind: kind, Actor: actor, Notes: notes, Reason: reason}
	if kind == schedule.ActionReschedule {
		if newDate == "" {
			return a, &schedule.ValidationError{Field: "new_date", Reason: "new_date is required"}
		}
		d, err := schedule.ParseDate(newDate)
		if err != nil {
			return a, &schedule.ValidationError{Field: "new_date", Reason: err.Error()}
		}
		a.NewDate = d
	}
	if newRemoval != "" {
		d, err := schedule.ParseDate(newRemoval)
		if err != nil {
			return a, &schedule.ValidationError{Field: "new_removal_date", Reason: err.Error()}
		}
		a.NewRemovalDate = d
	}
	return a, nil
}

func placementFilter(r *http.Request) (schedule.PlacementFilter, error) {
	q := r.URL.Query()
	f := schedule.PlacementFilter{
		SubscriptionID: schedule.SubscriptionID(q.Get("subscription_id")),
		HolidayID:      schedule.HolidayID(q.Get("holiday_id")),
	}
	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st := schedule.PlacementStatus(strings.TrimSpace(part))
			if !st.Valid() {
				return f, fmt.Errorf("unknown status %q", st)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	var err error
	if s := q.Get("from"); s != "" {
		if f.From, err = schedule.ParseDate(s); err != nil {
			return f, err
		}
	}
	if s := q.Get("to"); s != "" {
		if f.To, err = schedule.ParseDate(s); err != nil {
			return f, err
		}
	}
	return f, nil
}

func yearParam(r *http.Request, fallback int) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return fallback, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1 || year > 9999 {
		return 0, fmt.Errorf("year must be between 1 and 9999, got %q", s)
	}
	return year, nil
}
