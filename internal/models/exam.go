package models

import "time"

// Diet is an administrative exam period grouping multiple exams.
type Diet struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Exam is a single examination within a diet.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	DietID    string    `db:"diet_id" json:"diet_id"`
	Code      string    `db:"code" json:"code"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamVenue ties an exam to a venue with its sitting window. A row with a
// null start or null length has no derivable end and is treated as
// unconstrained by conflict and clash checks.
type ExamVenue struct {
	ID            string     `db:"id" json:"id"`
	ExamID        string     `db:"exam_id" json:"exam_id"`
	VenueID       string     `db:"venue_id" json:"venue_id"`
	StartAt       *time.Time `db:"start_at" json:"start_at,omitempty"`
	LengthMinutes *int       `db:"length_minutes" json:"length_minutes,omitempty"`
	Core          bool       `db:"core" json:"core"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// EndAt derives the end of the sitting window, or nil when the window is
// unconstrained.
func (ev ExamVenue) EndAt() *time.Time {
	if ev.StartAt == nil || ev.LengthMinutes == nil {
		return nil
	}
	end := ev.StartAt.Add(time.Duration(*ev.LengthMinutes) * time.Minute)
	return &end
}

// ExamFilter captures filtering options for listing exams.
type ExamFilter struct {
	DietID    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
