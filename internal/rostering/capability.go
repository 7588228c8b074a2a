package rostering

import "github.com/campus-ops/invigil-api/internal/models"

// Capability codes shared between provision requirements and venue
// capability sets.
const (
	CapSeparateRoomOnOwn    = "separate_room_on_own"
	CapSeparateRoomNotOnOwn = "separate_room_not_on_own"
	CapUseComputer          = "use_computer"
	CapAccessibleHall       = "accessible_hall"
	CapReader               = "reader"
	CapScribe               = "scribe"
	CapRestBreaks           = "rest_breaks"
)

// NormalizeRequirement applies a toggle to a requirement set. The two
// separate-room codes are mutually exclusive: selecting one clears the
// other. All other codes toggle independently. Order of the surviving codes
// is preserved.
func NormalizeRequirement(selected []string, toggled string) []string {
	present := false
	result := make([]string, 0, len(selected)+1)
	for _, code := range selected {
		if code == toggled {
			present = true
			continue
		}
		if toggled == CapSeparateRoomOnOwn && code == CapSeparateRoomNotOnOwn {
			continue
		}
		if toggled == CapSeparateRoomNotOnOwn && code == CapSeparateRoomOnOwn {
			continue
		}
		result = append(result, code)
	}
	if !present {
		result = append(result, toggled)
	}
	return result
}

// requiresSeparateRoom reports which separate-room variant, if any, the
// requirement carries.
func requiresSeparateRoom(requirement []string) (onOwn bool, any bool) {
	for _, code := range requirement {
		switch code {
		case CapSeparateRoomOnOwn:
			return true, true
		case CapSeparateRoomNotOnOwn:
			any = true
		}
	}
	return false, any
}

// VenueCandidate pairs a venue with the exam windows already booked into it,
// used for the single-occupant timing-clash exclusion.
type VenueCandidate struct {
	Venue   models.Venue
	Windows []models.ExamVenue
}

// EligibleVenues filters candidate venues against a provision requirement.
// Rules, in order: main-hall exclusion; separate-room typing with the on-own
// timing-clash exclusion; subset coverage of the leftover capability codes.
// Venues failing any rule are excluded; no partial matches are offered.
func EligibleVenues(requirement []string, candidates []VenueCandidate, target Interval, editingExamVenueID string, excludeMainHall bool) []VenueCandidate {
	onOwn, separate := requiresSeparateRoom(requirement)

	var eligible []VenueCandidate
	for _, candidate := range candidates {
		if excludeMainHall && candidate.Venue.Type == models.VenueTypeMainHall {
			continue
		}
		if separate {
			if candidate.Venue.Type != models.VenueTypeSeparateRoom {
				continue
			}
			// A single-occupant room cannot be double-booked, even across
			// different exams.
			if onOwn && hasTimingClash(candidate.Windows, target, editingExamVenueID) {
				continue
			}
		}
		if !coversRemaining(requirement, candidate.Venue) {
			continue
		}
		eligible = append(eligible, candidate)
	}
	return eligible
}

func hasTimingClash(windows []models.ExamVenue, target Interval, editingExamVenueID string) bool {
	for _, w := range windows {
		if w.ID == editingExamVenueID {
			continue
		}
		if iv, ok := WindowInterval(w); ok && Overlaps(iv, target) {
			return true
		}
	}
	return false
}

func coversRemaining(requirement []string, venue models.Venue) bool {
	for _, code := range requirement {
		if code == CapSeparateRoomOnOwn || code == CapSeparateRoomNotOnOwn {
			continue
		}
		if !venue.HasCapability(code) {
			return false
		}
	}
	return true
}
