/*
transition.go - Placement State Machine

PURPOSE:
  Governs the lifecycle of one FlagPlacement. This file is pure: it takes the
  current record plus an action and returns the new record plus the side effects
  the caller must perform. Persistence lives in service.go.

STATES:
  ┌───────────┐  place   ┌────────┐  remove  ┌─────────┐
  │ scheduled │ ───────▶ │ placed │ ───────▶ │ removed │
  └───────────┘          └────────┘          └─────────┘
        │ skip
        ▼
  ┌─────────┐
  │ skipped │        removed and skipped are terminal
  └─────────┘

  reschedule is legal only from scheduled and keeps the status.

GUARDS:
  An action from the wrong state returns *IllegalTransitionError and the input
  placement unchanged. Validation failures (empty skip reason, past reschedule
  date) return *ValidationError, also without change.

NOTES:
  Notes are append-only: every mutation appends a line to the existing text.

SEE ALSO:
  - service.go: Loads, applies, CAS-writes and dispatches effects
*/
package schedule

import (
	"fmt"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionPlace      ActionKind = "place"
	ActionRemove     ActionKind = "remove"
	ActionSkip       ActionKind = "skip"
	ActionReschedule ActionKind = "reschedule"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionPlace, ActionRemove, ActionSkip, ActionReschedule:
		return true
	}
	return false
}

// Action is one requested state change.
type Action struct {
	Kind ActionKind

	// Actor is recorded as placed_by / removed_by.
	Actor string
	Notes string

	// Reason is required for skip, optional for reschedule.
	Reason string

	// NewDate and NewRemovalDate apply to reschedule. A zero NewRemovalDate
	// keeps the current removal date unless the new placement date passes it.
	NewDate        Date
	NewRemovalDate Date
}

// Effect is a side effect the caller performs after persisting the outcome.
type Effect string

const (
	EffectNotifyPlaced Effect = "notify_placed"
)

type Outcome struct {
	Placement FlagPlacement
	Effects   []Effect
}

// Transition applies a to p as of now. today is the current calendar day used
// for date validation. p itself is never modified.
func Transition(p FlagPlacement, a Action, now time.Time, today Date) (Outcome, error) {
	next := p
	at := now.UTC()

	switch a.Kind {
	case ActionPlace:
		if err := require(p, a.Kind, StatusScheduled); err != nil {
			return Outcome{Placement: p}, err
		}
		next.Status = StatusPlaced
		next.PlacedAt = &at
		next.PlacedBy = a.Actor
		next.Notes = AppendNote(p.Notes, a.Notes)
		next.UpdatedAt = at
		return Outcome{Placement: next, Effects: []Effect{EffectNotifyPlaced}}, nil

	case ActionRemove:
		if err := require(p, a.Kind, StatusPlaced); err != nil {
			return Outcome{Placement: p}, err
		}
		next.Status = StatusRemoved
		next.RemovedAt = &at
		next.RemovedBy = a.Actor
		next.Notes = AppendNote(p.Notes, a.Notes)
		next.UpdatedAt = at
		return Outcome{Placement: next}, nil

	case ActionSkip:
		if err := require(p, a.Kind, StatusScheduled); err != nil {
			return Outcome{Placement: p}, err
		}
		reason := strings.TrimSpace(a.Reason)
		if reason == "" {
			return Outcome{Placement: p}, &ValidationError{Field: "reason", Reason: "skip reason is required"}
		}
		next.Status = StatusSkipped
		next.SkippedAt = &at
		next.SkipReason = reason
		next.Notes = AppendNote(p.Notes, a.Notes)
		next.UpdatedAt = at
		return Outcome{Placement: next}, nil

	case ActionReschedule:
		if err := require(p, a.Kind, StatusScheduled); err != nil {
			return Outcome{Placement: p}, err
		}
		if a.NewDate.IsZero() {
			return Outcome{Placement: p}, &ValidationError{Field: "new_date", Reason: "new date is required"}
		}
		if a.NewDate.Before(today) {
			return Outcome{Placement: p}, &ValidationError{Field: "new_date", Reason: "reschedule date is in the past"}
		}
		if a.NewDate.Equal(p.PlacementDate) {
			return Outcome{Placement: p}, &ValidationError{Field: "new_date", Reason: "placement is already on that date"}
		}
		removal := a.NewRemovalDate
		if removal.IsZero() {
			removal = MaxDate(p.RemovalDate, a.NewDate)
		}
		if removal.Before(a.NewDate) {
			return Outcome{Placement: p}, &ValidationError{Field: "new_removal_date", Reason: "removal date is before placement date"}
		}
		next.PlacementDate = a.NewDate
		next.RemovalDate = removal
		next.Notes = AppendNote(p.Notes, rescheduleNote(p.PlacementDate, a.NewDate, a.Reason))
		next.UpdatedAt = at
		return Outcome{Placement: next}, nil
	}

	return Outcome{Placement: p}, &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", a.Kind)}
}

func require(p FlagPlacement, action ActionKind, want PlacementStatus) error {
	if p.Status == want {
		return nil
	}
	return &IllegalTransitionError{
		PlacementID: p.ID,
		Action:      action,
		Current:     p.Status,
		Required:    want,
	}
}

func rescheduleNote(from, to Date, reason string) string {
	note := fmt.Sprintf("Rescheduled from %s to %s", from, to)
	if r := strings.TrimSpace(reason); r != "" {
		note += ": " + r
	}
	return note
}

// AppendNote joins note onto existing with a newline. Empty notes are dropped.
func AppendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return existing
	case existing == "":
		return note
	default:
		return existing + "\n" + note
	}
}
