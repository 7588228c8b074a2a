package dto

import "github.com/campus-ops/invigil-api/internal/models"

// RosterEntry pairs an eligible invigilator with their current assignment
// for the venue, when one exists.
type RosterEntry struct {
	Invigilator models.Invigilator `json:"invigilator"`
	Assignment  *models.Assignment `json:"assignment,omitempty"`
}

// AssignmentEdit overrides the default shift window for one invigilator.
type AssignmentEdit struct {
	Start *string `json:"start,omitempty"`
	End   *string `json:"end,omitempty"`
	Role  string  `json:"role,omitempty"`
}

// ReconcileRequest carries the operator's desired end-state selection.
type ReconcileRequest struct {
	SelectedIDs []string                  `json:"selected_ids" binding:"required"`
	Edits       map[string]AssignmentEdit `json:"edits,omitempty"`
}

// CancellationRequest asks to release an invigilator from a shift.
type CancellationRequest struct {
	Cause string `json:"cause" binding:"required"`
}

// ResolveCancellationRequest records the coordinator's decision.
type ResolveCancellationRequest struct {
	Approved bool `json:"approved"`
}

// ConfirmRequest toggles an assignment's confirmed flag.
type ConfirmRequest struct {
	Confirmed bool `json:"confirmed"`
}
