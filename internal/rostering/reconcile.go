package rostering

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campus-ops/invigil-api/internal/models"
)

// Validation failures raised before any store operation is attempted. Any of
// these aborts the whole reconciliation for the venue.
var (
	ErrInvalidInterval = errors.New("assignment start and end must form a valid ordered interval")
	ErrMissingRole     = errors.New("assignment role is required")
	ErrNoChanges       = errors.New("selection matches the persisted assignments")
)

// AssignmentEdit carries the operator's pending time and role for one
// selected invigilator.
type AssignmentEdit struct {
	Start *time.Time
	End   *time.Time
	Role  string
}

// DefaultEdit derives the edit used when the operator supplied none: the
// venue's own sitting window with no role.
func DefaultEdit(venue models.ExamVenue) AssignmentEdit {
	return AssignmentEdit{Start: venue.StartAt, End: venue.EndAt()}
}

// SelectionInput is the operator's desired end-state for one venue: which
// invigilators should be assigned, and any per-invigilator edits. It is an
// immutable value; reconciliation never mutates it.
type SelectionInput struct {
	Venue       models.ExamVenue
	SelectedIDs []string
	Edits       map[string]AssignmentEdit
}

// EditFor resolves the pending edit for an invigilator, falling back to the
// venue-window default when the operator left the entry untouched.
func (s SelectionInput) EditFor(invigilatorID string) AssignmentEdit {
	if edit, ok := s.Edits[invigilatorID]; ok {
		return edit
	}
	return DefaultEdit(s.Venue)
}

// SelectionDelta is the minimal operation set moving the persisted state to
// the operator's selection.
type SelectionDelta struct {
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
	ToUpdate []string `json:"to_update"`
}

// HasChanges reports whether any operation is pending.
func (d SelectionDelta) HasChanges() bool {
	return len(d.ToAdd) > 0 || len(d.ToRemove) > 0 || len(d.ToUpdate) > 0
}

// ComputeDelta diffs the selection against the venue's persisted
// assignments. Timestamps are compared at minute granularity and an absent
// role equals the empty string. Invigilators whose state is unchanged appear
// in no list.
func ComputeDelta(sel SelectionInput, persisted []models.Assignment) SelectionDelta {
	byInvigilator := make(map[string]models.Assignment, len(persisted))
	for _, a := range persisted {
		byInvigilator[a.InvigilatorID] = a
	}

	selected := make(map[string]struct{}, len(sel.SelectedIDs))
	var delta SelectionDelta
	for _, id := range sel.SelectedIDs {
		if _, dup := selected[id]; dup {
			continue
		}
		selected[id] = struct{}{}

		existing, ok := byInvigilator[id]
		if !ok {
			delta.ToAdd = append(delta.ToAdd, id)
			continue
		}
		if edited(sel.EditFor(id), existing) {
			delta.ToUpdate = append(delta.ToUpdate, id)
		}
	}
	// Duplicate persisted rows for one invigilator collapse to a single
	// removal, mirroring the last-row-wins map above.
	removed := make(map[string]struct{}, len(persisted))
	for _, a := range persisted {
		if _, ok := selected[a.InvigilatorID]; ok {
			continue
		}
		if _, dup := removed[a.InvigilatorID]; dup {
			continue
		}
		removed[a.InvigilatorID] = struct{}{}
		delta.ToRemove = append(delta.ToRemove, a.InvigilatorID)
	}
	return delta
}

func edited(edit AssignmentEdit, existing models.Assignment) bool {
	if !minuteEqual(edit.Start, existing.AssignedStart) {
		return true
	}
	if !minuteEqual(edit.End, existing.AssignedEnd) {
		return true
	}
	return edit.Role != existing.RoleOrEmpty()
}

func minuteEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

// ValidateEdit checks an edit destined for an add or update operation.
func ValidateEdit(edit AssignmentEdit) error {
	iv := Interval{Start: edit.Start, End: edit.End}
	if !iv.Valid() {
		return ErrInvalidInterval
	}
	if strings.TrimSpace(edit.Role) == "" {
		return ErrMissingRole
	}
	return nil
}

// OperationKind discriminates planned store operations.
type OperationKind string

const (
	OpRemove OperationKind = "REMOVE"
	OpAdd    OperationKind = "ADD"
	OpUpdate OperationKind = "UPDATE"
)

// Operation is one store call the caller must execute. Removes are ordered
// before adds so that swapping one invigilator for another never appears to
// double-book the slot in transit; updates carry no ordering contract.
type Operation struct {
	Kind          OperationKind
	AssignmentID  string
	InvigilatorID string
	ExamVenueID   string
	Start         *time.Time
	End           *time.Time
	Role          string
}

// PlanOperations validates every pending add and update, then expands the
// delta into an ordered operation list. An empty delta is a validation
// failure (ErrNoChanges), not a silent no-op.
func PlanOperations(sel SelectionInput, persisted []models.Assignment) ([]Operation, error) {
	delta := ComputeDelta(sel, persisted)
	if !delta.HasChanges() {
		return nil, ErrNoChanges
	}

	byInvigilator := make(map[string]models.Assignment, len(persisted))
	for _, a := range persisted {
		byInvigilator[a.InvigilatorID] = a
	}

	for _, id := range delta.ToAdd {
		if err := ValidateEdit(sel.EditFor(id)); err != nil {
			return nil, fmt.Errorf("invigilator %s: %w", id, err)
		}
	}
	for _, id := range delta.ToUpdate {
		if err := ValidateEdit(sel.EditFor(id)); err != nil {
			return nil, fmt.Errorf("invigilator %s: %w", id, err)
		}
	}

	ops := make([]Operation, 0, len(delta.ToAdd)+len(delta.ToRemove)+len(delta.ToUpdate))
	for _, id := range delta.ToRemove {
		existing := byInvigilator[id]
		ops = append(ops, Operation{
			Kind:          OpRemove,
			AssignmentID:  existing.ID,
			InvigilatorID: id,
			ExamVenueID:   sel.Venue.ID,
		})
	}
	for _, id := range delta.ToUpdate {
		existing := byInvigilator[id]
		edit := sel.EditFor(id)
		ops = append(ops, Operation{
			Kind:          OpUpdate,
			AssignmentID:  existing.ID,
			InvigilatorID: id,
			ExamVenueID:   sel.Venue.ID,
			Start:         edit.Start,
			End:           edit.End,
			Role:          edit.Role,
		})
	}
	for _, id := range delta.ToAdd {
		edit := sel.EditFor(id)
		ops = append(ops, Operation{
			Kind:          OpAdd,
			InvigilatorID: id,
			ExamVenueID:   sel.Venue.ID,
			Start:         edit.Start,
			End:           edit.End,
			Role:          edit.Role,
		})
	}
	return ops, nil
}

// Action is the operator-facing verb for a failed operation.
type Action string

const (
	ActionAssign   Action = "assign"
	ActionUnassign Action = "unassign"
	ActionUpdate   Action = "update"
)

// ActionForKind maps an operation kind to its reporting verb.
func ActionForKind(kind OperationKind) Action {
	switch kind {
	case OpAdd:
		return ActionAssign
	case OpRemove:
		return ActionUnassign
	default:
		return ActionUpdate
	}
}

// OperationFailure records one failed store call. Failures never abort the
// remaining operations; they are collected and summarised afterwards.
type OperationFailure struct {
	InvigilatorID string
	DisplayName   string
	Action        Action
	Err           error
}

// ApplyError aggregates per-invigilator operation failures into a single
// operator-facing error.
type ApplyError struct {
	Failures []OperationFailure
}

// Error summarises the failure count, the verb mix and the affected names,
// e.g. "failed to assign/unassign 2 invigilators: Ada Price, Rob Nye".
func (e *ApplyError) Error() string {
	if e == nil || len(e.Failures) == 0 {
		return "no assignment operations failed"
	}
	verbs := make(map[Action]struct{}, 3)
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		verbs[f.Action] = struct{}{}
		name := f.DisplayName
		if name == "" {
			name = f.InvigilatorID
		}
		names = append(names, name)
	}
	ordered := make([]string, 0, len(verbs))
	for _, a := range []Action{ActionAssign, ActionUnassign, ActionUpdate} {
		if _, ok := verbs[a]; ok {
			ordered = append(ordered, string(a))
		}
	}
	noun := "invigilators"
	if len(e.Failures) == 1 {
		noun = "invigilator"
	}
	sort.Strings(names)
	return fmt.Sprintf("failed to %s %d %s: %s",
		strings.Join(ordered, "/"), len(e.Failures), noun, strings.Join(names, ", "))
}

// NewApplyError wraps collected failures, returning nil when none occurred.
func NewApplyError(failures []OperationFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return &ApplyError{Failures: failures}
}
