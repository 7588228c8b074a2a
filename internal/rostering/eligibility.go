package rostering

import (
	"strings"
	"time"

	"github.com/campus-ops/invigil-api/internal/models"
)

// FilterOptions scope a roster eligibility pass to one exam-venue window.
type FilterOptions struct {
	// Query filters by resolved display name, case-insensitive substring.
	Query string
	// OnlyAvailable excludes invigilators with a conflict or whose
	// availability for the window's date and slot is anything other than
	// AVAILABLE. Unknown availability fails closed.
	OnlyAvailable bool
	// Venue is the exam-venue window being edited.
	Venue models.ExamVenue
	// Assignments are all active and cancelled assignments across venues,
	// used for conflict detection.
	Assignments []models.Assignment
	// AssignedIDs are invigilators already holding an assignment for this
	// venue; they bypass the resigned and only-available exclusions so that
	// committed staff stay visible and editable.
	AssignedIDs map[string]struct{}
	// Location resolves the local hour when bucketing the window into a
	// morning or evening slot.
	Location *time.Location
}

// FilterRoster produces the selectable roster for a venue and slot. Roster
// order is preserved; no re-sorting happens here.
func FilterRoster(roster []models.Invigilator, opts FilterOptions) []models.Invigilator {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	window, windowOK := WindowInterval(opts.Venue)
	slot, slotOK := SlotForStart(opts.Venue.StartAt, loc)

	var eligible []models.Invigilator
	for _, inv := range roster {
		_, assigned := opts.AssignedIDs[inv.ID]

		// Resigned staff already committed to this venue must remain
		// visible; blocking new adds is enforced at selection time.
		if inv.Resigned && !assigned {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(inv.DisplayName()), query) {
			continue
		}
		if opts.OnlyAvailable && !assigned {
			if windowOK && HasConflict(inv.ID, window, opts.Assignments, opts.Venue.ID) {
				continue
			}
			if !slotOK {
				// No derivable slot means availability cannot be
				// evaluated; fail closed.
				continue
			}
			// The calendar day must resolve in the same location as
			// the slot, or sittings near midnight UTC query the
			// wrong local day.
			if AvailabilityOn(inv.Availability, opts.Venue.StartAt.In(loc), slot) != AvailabilityAvailable {
				continue
			}
		}
		eligible = append(eligible, inv)
	}
	return eligible
}
