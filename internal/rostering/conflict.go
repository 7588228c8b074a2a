package rostering

import "github.com/campus-ops/invigil-api/internal/models"

// HasConflict reports whether assigning the invigilator to the target window
// would double-book them. Only active (non-cancelled) assignments belonging
// to the invigilator are considered, and assignments tied to the venue
// currently being edited are skipped so that editing a shift never flags the
// shift itself. Assignments without a valid interval never conflict.
func HasConflict(invigilatorID string, target Interval, assignments []models.Assignment, excludeExamVenueID string) bool {
	if !target.Valid() {
		return false
	}
	for _, a := range assignments {
		if a.InvigilatorID != invigilatorID || !a.Active() {
			continue
		}
		if excludeExamVenueID != "" && a.ExamVenueID == excludeExamVenueID {
			continue
		}
		if Overlaps(AssignmentInterval(a), target) {
			return true
		}
	}
	return false
}
