package models

import "time"

// Assignment is a persisted invigilation shift: one invigilator covering one
// exam-venue window. It is created, mutated and deleted only through the
// reconciler's planned operations and the cancellation workflow.
type Assignment struct {
	ID                string     `db:"id" json:"id"`
	InvigilatorID     string     `db:"invigilator_id" json:"invigilator_id"`
	ExamVenueID       string     `db:"exam_venue_id" json:"exam_venue_id"`
	AssignedStart     *time.Time `db:"assigned_start" json:"assigned_start,omitempty"`
	AssignedEnd       *time.Time `db:"assigned_end" json:"assigned_end,omitempty"`
	Role              *string    `db:"role" json:"role,omitempty"`
	Confirmed         *bool      `db:"confirmed" json:"confirmed,omitempty"`
	Cancelled         bool       `db:"cancelled" json:"cancelled"`
	CancelCause       *string    `db:"cancel_cause" json:"cancel_cause,omitempty"`
	CancelRequestedAt *time.Time `db:"cancel_requested_at" json:"cancel_requested_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the assignment still counts against the
// invigilator's commitments.
func (a Assignment) Active() bool {
	return !a.Cancelled
}

// CancelPending reports whether a cancellation request awaits a decision.
func (a Assignment) CancelPending() bool {
	return !a.Cancelled && a.CancelRequestedAt != nil
}

// RoleOrEmpty returns the role treating an absent role as the empty string.
func (a Assignment) RoleOrEmpty() string {
	if a.Role == nil {
		return ""
	}
	return *a.Role
}
