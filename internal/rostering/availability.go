package rostering

import (
	"time"

	"github.com/campus-ops/invigil-api/internal/models"
)

// Availability is the tri-state result of an availability lookup.
type Availability int

const (
	// AvailabilityUnknown means no entry exists for the queried date and
	// slot. Under the "only available" filter this is treated as not
	// available.
	AvailabilityUnknown Availability = iota
	AvailabilityAvailable
	AvailabilityUnavailable
)

// String implements fmt.Stringer for log output.
func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "AVAILABLE"
	case AvailabilityUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// SlotForStart maps a sitting start to its half-day slot: before noon local
// time is MORNING, noon onwards is EVENING. A missing start has no slot and
// the caller must treat availability as non-evaluable.
func SlotForStart(start *time.Time, loc *time.Location) (models.Slot, bool) {
	if start == nil {
		return "", false
	}
	if loc == nil {
		loc = time.Local
	}
	if start.In(loc).Hour() < 12 {
		return models.SlotMorning, true
	}
	return models.SlotEvening, true
}

// AvailabilityOn resolves an invigilator's availability for a calendar day
// and slot from their structured entries.
func AvailabilityOn(entries []models.AvailabilityEntry, day time.Time, slot models.Slot) Availability {
	for _, e := range entries {
		if e.Slot != slot || !e.SameDay(day) {
			continue
		}
		if e.Available {
			return AvailabilityAvailable
		}
		return AvailabilityUnavailable
	}
	return AvailabilityUnknown
}
