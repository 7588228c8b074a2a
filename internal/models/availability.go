package models

import "time"

// Slot is the half-day availability bucket.
type Slot string

const (
	SlotMorning Slot = "MORNING"
	SlotEvening Slot = "EVENING"
)

// Valid reports whether the slot is one of the known buckets.
func (s Slot) Valid() bool {
	return s == SlotMorning || s == SlotEvening
}

// AvailabilityEntry records whether an invigilator is available for a
// date and slot. At most one entry exists per (invigilator, date, slot);
// absence of an entry means availability is unknown.
type AvailabilityEntry struct {
	ID            string    `db:"id" json:"id"`
	InvigilatorID string    `db:"invigilator_id" json:"invigilator_id"`
	Date          time.Time `db:"date" json:"date"`
	Slot          Slot      `db:"slot" json:"slot"`
	Available     bool      `db:"available" json:"available"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SameDay reports whether the entry's date falls on the given calendar day.
func (e AvailabilityEntry) SameDay(day time.Time) bool {
	y1, m1, d1 := e.Date.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
