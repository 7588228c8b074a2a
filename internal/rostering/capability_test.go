package rostering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/invigil-api/internal/models"
)

func TestNormalizeRequirementMutualExclusion(t *testing.T) {
	req := NormalizeRequirement(nil, CapSeparateRoomOnOwn)
	assert.Equal(t, []string{CapSeparateRoomOnOwn}, req)

	req = NormalizeRequirement(req, CapSeparateRoomNotOnOwn)
	assert.Equal(t, []string{CapSeparateRoomNotOnOwn}, req)

	req = NormalizeRequirement(req, CapSeparateRoomOnOwn)
	assert.Equal(t, []string{CapSeparateRoomOnOwn}, req)

	// Never both, regardless of toggle sequence.
	for _, toggles := range [][]string{
		{CapSeparateRoomOnOwn, CapSeparateRoomNotOnOwn, CapSeparateRoomOnOwn},
		{CapSeparateRoomNotOnOwn, CapSeparateRoomOnOwn},
	} {
		var set []string
		for _, code := range toggles {
			set = NormalizeRequirement(set, code)
		}
		onOwn, notOnOwn := false, false
		for _, code := range set {
			onOwn = onOwn || code == CapSeparateRoomOnOwn
			notOnOwn = notOnOwn || code == CapSeparateRoomNotOnOwn
		}
		assert.False(t, onOwn && notOnOwn)
	}
}

func TestNormalizeRequirementIndependentCodes(t *testing.T) {
	req := NormalizeRequirement([]string{CapUseComputer, CapSeparateRoomOnOwn}, CapAccessibleHall)
	assert.Equal(t, []string{CapUseComputer, CapSeparateRoomOnOwn, CapAccessibleHall}, req)

	// Toggling a present code removes it without touching others.
	req = NormalizeRequirement(req, CapUseComputer)
	assert.Equal(t, []string{CapSeparateRoomOnOwn, CapAccessibleHall}, req)
}

func capabilityCandidates(t *testing.T) []VenueCandidate {
	t.Helper()
	return []VenueCandidate{
		{
			Venue: models.Venue{ID: "hall", Name: "Main Hall", Type: models.VenueTypeMainHall,
				Capabilities: []string{CapAccessibleHall}},
		},
		{
			Venue: models.Venue{ID: "room-1", Name: "Room 1.12", Type: models.VenueTypeSeparateRoom,
				Capabilities: []string{CapUseComputer, CapRestBreaks}},
		},
		{
			Venue: models.Venue{ID: "room-2", Name: "Room 2.04", Type: models.VenueTypeSeparateRoom,
				Capabilities: []string{CapUseComputer}},
			Windows: []models.ExamVenue{
				{ID: "ev-other", StartAt: tsp(t, "2026-05-04 10:00"), LengthMinutes: intPtr(90)},
			},
		},
	}
}

func TestEligibleVenuesSubsetCoverage(t *testing.T) {
	target := NewInterval(ts(t, "2026-05-04 09:30"), ts(t, "2026-05-04 11:30"))

	eligible := EligibleVenues([]string{CapUseComputer}, capabilityCandidates(t), target, "ev-editing", false)
	require.Len(t, eligible, 2)
	assert.Equal(t, "room-1", eligible[0].Venue.ID)
	assert.Equal(t, "room-2", eligible[1].Venue.ID)

	// No partial matches: a venue missing any leftover code is excluded.
	eligible = EligibleVenues([]string{CapUseComputer, CapRestBreaks}, capabilityCandidates(t), target, "ev-editing", false)
	require.Len(t, eligible, 1)
	assert.Equal(t, "room-1", eligible[0].Venue.ID)
}

func TestEligibleVenuesMainHallExclusion(t *testing.T) {
	target := NewInterval(ts(t, "2026-05-04 09:30"), ts(t, "2026-05-04 11:30"))

	eligible := EligibleVenues([]string{CapAccessibleHall}, capabilityCandidates(t), target, "ev-editing", false)
	require.Len(t, eligible, 1)
	assert.Equal(t, "hall", eligible[0].Venue.ID)

	eligible = EligibleVenues([]string{CapAccessibleHall}, capabilityCandidates(t), target, "ev-editing", true)
	assert.Empty(t, eligible)
}

func TestEligibleVenuesSeparateRoomOnOwnClash(t *testing.T) {
	target := NewInterval(ts(t, "2026-05-04 09:30"), ts(t, "2026-05-04 11:30"))

	// room-2 hosts another exam overlapping the target, so the on-own
	// variant excludes it while the not-on-own variant keeps it.
	eligible := EligibleVenues([]string{CapSeparateRoomOnOwn}, capabilityCandidates(t), target, "ev-editing", false)
	require.Len(t, eligible, 1)
	assert.Equal(t, "room-1", eligible[0].Venue.ID)

	eligible = EligibleVenues([]string{CapSeparateRoomNotOnOwn}, capabilityCandidates(t), target, "ev-editing", false)
	require.Len(t, eligible, 2)
}

func TestEligibleVenuesClashIgnoresWindowBeingEdited(t *testing.T) {
	target := NewInterval(ts(t, "2026-05-04 09:30"), ts(t, "2026-05-04 11:30"))

	eligible := EligibleVenues([]string{CapSeparateRoomOnOwn}, capabilityCandidates(t), target, "ev-other", false)
	require.Len(t, eligible, 2)
}

func TestEligibleVenuesSeparateRoomTyping(t *testing.T) {
	target := NewInterval(ts(t, "2026-05-04 09:30"), ts(t, "2026-05-04 11:30"))

	// A separate-room requirement drops non separate-room venues even when
	// their capabilities cover everything else.
	eligible := EligibleVenues([]string{CapSeparateRoomNotOnOwn, CapUseComputer}, capabilityCandidates(t), target, "ev-editing", false)
	require.Len(t, eligible, 2)
	for _, c := range eligible {
		assert.Equal(t, models.VenueTypeSeparateRoom, c.Venue.Type)
	}
}
