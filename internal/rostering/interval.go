// Package rostering implements the invigilation matching core: time window
// arithmetic, availability resolution, conflict detection, selection-delta
// reconciliation and venue capability matching. Everything here is a pure
// function of its inputs; persistence and transport live in the surrounding
// service layer.
package rostering

import (
	"time"

	"github.com/campus-ops/invigil-api/internal/models"
)

// Interval is a half-open time window [Start, End). A nil bound makes the
// interval unconstrained: it never overlaps anything and has no duration.
type Interval struct {
	Start *time.Time
	End   *time.Time
}

// NewInterval builds an interval from concrete bounds.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: &start, End: &end}
}

// Valid reports whether both bounds are present and ordered.
func (iv Interval) Valid() bool {
	return iv.Start != nil && iv.End != nil && iv.Start.Before(*iv.End)
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap. Either interval being invalid yields false.
func Overlaps(a, b Interval) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.Start.Before(*b.End) && b.Start.Before(*a.End)
}

// DurationMinutes returns the interval length in whole minutes. The second
// return value is false when a bound is missing or the end does not follow
// the start.
func DurationMinutes(iv Interval) (int, bool) {
	if !iv.Valid() {
		return 0, false
	}
	return int(iv.End.Sub(*iv.Start) / time.Minute), true
}

// WindowInterval derives the sitting interval of an exam-venue window. A
// window with no start or no length is unconstrained and yields ok=false.
func WindowInterval(ev models.ExamVenue) (Interval, bool) {
	if ev.StartAt == nil || ev.LengthMinutes == nil || *ev.LengthMinutes < 0 {
		return Interval{}, false
	}
	end := ev.StartAt.Add(time.Duration(*ev.LengthMinutes) * time.Minute)
	return Interval{Start: ev.StartAt, End: &end}, true
}

// AssignmentInterval lifts an assignment's start/end into an Interval.
func AssignmentInterval(a models.Assignment) Interval {
	return Interval{Start: a.AssignedStart, End: a.AssignedEnd}
}
