/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Holiday:
    factory.HolidayJSON (request and response), HolidayDatesDTO

  Catalog:
    CustomerDTO, CreateCustomerRequest, ProductDTO, CreateProductRequest

  Subscription:
    SubscriptionDTO, CreateSubscriptionRequest, GenerationReportDTO,
    CancelResponse

  Placement:
    PlacementDTO, TransitionRequest, BulkRequest, BulkResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  decodeAndValidate before touching domain logic. Domain invariants (period
  order, transition rules) are still enforced by the schedule package.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/holiday.go: HolidayJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/injoimydesign/flag-community/schedule"
)

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDatesDTO is a holiday resolved for one year.
type HolidayDatesDTO struct {
	HolidayID     string `json:"holiday_id"`
	Year          int    `json:"year"`
	Occurs        bool   `json:"occurs"`
	HolidayDate   string `json:"holiday_date,omitempty"`
	PlacementDate string `json:"placement_date,omitempty"`
	RemovalDate   string `json:"removal_date,omitempty"`
}

// =============================================================================
// CUSTOMERS / PRODUCTS
// =============================================================================

type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateCustomerRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address" validate:"required"`
}

type ProductDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   string `json:"size,omitempty"`
	Price  string `json:"price"`
	Active bool   `json:"active"`
}

type CreateProductRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required"`
	Size   string `json:"size"`
	Price  string `json:"price" validate:"omitempty,numeric"`
	Active *bool  `json:"active"`
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

type SubscriptionItemDTO struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice string `json:"unit_price,omitempty" validate:"omitempty,numeric"`
}

type SubscriptionDTO struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customer_id"`
	Status        string                `json:"status"`
	StartDate     string                `json:"start_date"`
	EndDate       string                `json:"end_date"`
	HolidayIDs    []string              `json:"holiday_ids"`
	Items         []SubscriptionItemDTO `json:"items"`
	Total         string                `json:"total"`
	RenewedFromID string                `json:"renewed_from_id,omitempty"`
	CancelledAt   string                `json:"cancelled_at,omitempty"`
}

type CreateSubscriptionRequest struct {
	ID         string                `json:"id"`
	CustomerID string                `json:"customer_id" validate:"required"`
	Status     string                `json:"status" validate:"omitempty,oneof=pending active"`
	StartDate  string                `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string                `json:"end_date" validate:"required,datetime=2006-01-02"`
	HolidayIDs []string              `json:"holiday_ids" validate:"dive,required"`
	Items      []SubscriptionItemDTO `json:"items" validate:"required,min=1,dive"`
}

type GenerationFailureDTO struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type GenerationReportDTO struct {
	Subscriptions int                    `json:"subscriptions"`
	Created       int                    `json:"created"`
	Existing      int                    `json:"existing"`
	Failures      []GenerationFailureDTO `json:"failures,omitempty"`
	Placements    []PlacementDTO         `json:"placements,omitempty"`
}

// SubscriptionResponse pairs a subscription with the planner run it triggered.
type SubscriptionResponse struct {
	Subscription SubscriptionDTO      `json:"subscription"`
	Generation   *GenerationReportDTO `json:"generation,omitempty"`
}

type CancelResponse struct {
	Subscription SubscriptionDTO `json:"subscription"`
	Skipped      []BulkResultDTO `json:"skipped"`
}

// =============================================================================
// PLACEMENTS
// =============================================================================

type PlacementDTO struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	HolidayID      string `json:"holiday_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	PlannedDate    string `json:"planned_date"`
	PlacementDate  string `json:"placement_date"`
	RemovalDate    string `json:"removal_date"`
	Status         string `json:"status"`
	PlacedAt       string `json:"placed_at,omitempty"`
	PlacedBy       string `json:"placed_by,omitempty"`
	RemovedAt      string `json:"removed_at,omitempty"`
	RemovedBy      string `json:"removed_by,omitempty"`
	SkippedAt      string `json:"skipped_at,omitempty"`
	SkipReason     string `json:"skip_reason,omitempty"`
	ReminderSentAt string `json:"reminder_sent_at,omitempty"`
	Notes          string `json:"notes,omitempty"`
	SiteAddress    string `json:"site_address,omitempty"`
	Version        int    `json:"version"`
}

// TransitionRequest is the body of place / remove / skip / reschedule.
// Which fields are required depends on the action.
type TransitionRequest struct {
	Actor          string `json:"actor"`
	Notes          string `json:"notes"`
	Reason         string `json:"reason"`
	NewDate        string `json:"new_date" validate:"omitempty,datetime=2006-01-02"`
	NewRemovalDate string `json:"new_removal_date" validate:"omitempty,datetime=2006-01-02"`
}

type BulkRequest struct {
	Action  string   `json:"action" validate:"required,oneof=place remove skip reschedule"`
	IDs     []string `json:"ids" validate:"required,min=1,dive,required"`
	Actor   string   `json:"actor"`
	Notes   string   `json:"notes"`
	Reason  string   `json:"reason"`
	NewDate string   `json:"new_date" validate:"omitempty,datetime=2006-01-02"`
}

type BulkResultDTO struct {
	ID        string        `json:"id"`
	OK        bool          `json:"ok"`
	Reason    string        `json:"reason,omitempty"`
	Placement *PlacementDTO `json:"placement,omitempty"`
}

type BulkResponse struct {
	Results   []BulkResultDTO `json:"results"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

type RemindersRequest struct {
	DaysAhead *int `json:"days_ahead" validate:"omitempty,min=0,max=60"`
}

type RemindersResponse struct {
	Sent int `json:"sent"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toCustomerDTO(c schedule.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: formatTime(&c.CreatedAt),
	}
}

func toProductDTO(p schedule.FlagProduct) ProductDTO {
	return ProductDTO{
		ID:     string(p.ID),
		Name:   p.Name,
		Size:   p.Size,
		Price:  p.Price.StringFixed(2),
		Active: p.Active,
	}
}

func toSubscriptionDTO(s schedule.Subscription) SubscriptionDTO {
	dto := SubscriptionDTO{
		ID:            string(s.ID),
		CustomerID:    string(s.CustomerID),
		Status:        string(s.Status),
		StartDate:     s.StartDate.String(),
		EndDate:       s.EndDate.String(),
		HolidayIDs:    make([]string, len(s.HolidayIDs)),
		Items:         make([]SubscriptionItemDTO, len(s.Items)),
		Total:         s.Total().StringFixed(2),
		RenewedFromID: string(s.RenewedFromID),
		CancelledAt:   formatTime(s.CancelledAt),
	}
	for i, id := range s.HolidayIDs {
		dto.HolidayIDs[i] = string(id)
	}
	for i, item := range s.Items {
		dto.Items[i] = SubscriptionItemDTO{
			ProductID: string(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
	}
	return dto
}

func toPlacementDTO(p schedule.FlagPlacement) PlacementDTO {
	return PlacementDTO{
		ID:             string(p.ID),
		SubscriptionID: string(p.SubscriptionID),
		HolidayID:      string(p.HolidayID),
		ProductID:      string(p.ProductID),
		Quantity:       p.Quantity,
		PlannedDate:    p.PlannedDate.String(),
		PlacementDate:  p.PlacementDate.String(),
		RemovalDate:    p.RemovalDate.String(),
		Status:         string(p.Status),
		PlacedAt:       formatTime(p.PlacedAt),
		PlacedBy:       p.PlacedBy,
		RemovedAt:      formatTime(p.RemovedAt),
		RemovedBy:      p.RemovedBy,
		SkippedAt:      formatTime(p.SkippedAt),
		SkipReason:     p.SkipReason,
		ReminderSentAt: formatTime(p.ReminderSentAt),
		Notes:          p.Notes,
		SiteAddress:    p.SiteAddress,
		Version:        p.Version,
	}
}

func toPlacementDTOs(list []schedule.FlagPlacement) []PlacementDTO {
	dtos := make([]PlacementDTO, len(list))
	for i, p := range list {
		dtos[i] = toPlacementDTO(p)
	}
	return dtos
}

func toReportDTO(r *schedule.GenerationReport) *GenerationReportDTO {
	if r == nil {
		return nil
	}
	dto := &GenerationReportDTO{
		Subscriptions: r.Subscriptions,
		Created:       len(r.Created),
		Existing:      r.Existing,
		Placements:    toPlacementDTOs(r.Created),
	}
	for _, f := range r.Failures {
		dto.Failures = append(dto.Failures, GenerationFailureDTO{Key: f.Key.String(), Error: f.Err.Error()})
	}
	return dto
}

func toBulkResultDTOs(results []schedule.BulkResult) []BulkResultDTO {
	dtos := make([]BulkResultDTO, len(results))
	for i, r := range results {
		dtos[i] = BulkResultDTO{ID: string(r.ID), OK: r.OK, Reason: r.Reason}
		if r.Placement != nil {
			p := toPlacementDTO(*r.Placement)
			dtos[i].Placement = &p
		}
	}
	return dtos
}

// toSubscription converts a validated request. Dates were checked by the
// validator, so parse errors here are unexpected.
func (req CreateSubscriptionRequest) toSubscription() (schedule.Subscription, error) {
	start, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		return schedule.Subscription{}, &schedule.ValidationError{Field: "start_date", Reason: err.Error()}
	}
	end, err := schedule.ParseDate(req.EndDate)
	if err != nil {
		return schedule.Subscription{}, &schedule.ValidationError{Field: "end_date", Reason: err.Error()}
	}
	sub := schedule.Subscription{
		ID:         schedule.SubscriptionID(req.ID),
		CustomerID: schedule.CustomerID(req.CustomerID),
		Status:     schedule.SubscriptionStatus(req.Status),
		StartDate:  start,
		EndDate:    end,
	}
	for _, id := range req.HolidayIDs {
		sub.HolidayIDs = append(sub.HolidayIDs, schedule.HolidayID(id))
	}
	for _, item := range req.Items {
		price := decimal.Zero
		if item.UnitPrice != "" {
			if price, err = decimal.NewFromString(item.UnitPrice); err != nil {
				return schedule.Subscription{}, &schedule.ValidationError{Field: "items.unit_price", Reason: err.Error()}
			}
		}
		sub.Items = append(sub.Items, schedule.SubscriptionItem{
			ProductID: schedule.ProductID(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}
	return sub, nil
}
