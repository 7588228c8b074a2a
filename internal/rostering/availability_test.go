package rostering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/invigil-api/internal/models"
)

func TestSlotForStart(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	morning := ts(t, "2026-05-04 09:00")
	slot, ok := SlotForStart(&morning, london)
	require.True(t, ok)
	assert.Equal(t, models.SlotMorning, slot)

	afternoon := ts(t, "2026-05-04 13:30")
	slot, ok = SlotForStart(&afternoon, london)
	require.True(t, ok)
	assert.Equal(t, models.SlotEvening, slot)

	noon := ts(t, "2026-05-04 12:00")
	slot, ok = SlotForStart(&noon, time.UTC)
	require.True(t, ok)
	assert.Equal(t, models.SlotEvening, slot)

	_, ok = SlotForStart(nil, london)
	assert.False(t, ok)
}

func TestSlotForStartUsesLocalHour(t *testing.T) {
	// 11:30 UTC is 12:30 in London during BST, so the local bucket flips.
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	start := time.Date(2026, time.June, 1, 11, 30, 0, 0, time.UTC)
	slot, ok := SlotForStart(&start, london)
	require.True(t, ok)
	assert.Equal(t, models.SlotEvening, slot)

	slot, ok = SlotForStart(&start, time.UTC)
	require.True(t, ok)
	assert.Equal(t, models.SlotMorning, slot)
}

func TestAvailabilityOn(t *testing.T) {
	day := ts(t, "2026-05-04 00:00")
	entries := []models.AvailabilityEntry{
		{InvigilatorID: "inv-1", Date: day, Slot: models.SlotMorning, Available: true},
		{InvigilatorID: "inv-1", Date: day, Slot: models.SlotEvening, Available: false},
	}

	assert.Equal(t, AvailabilityAvailable, AvailabilityOn(entries, day, models.SlotMorning))
	assert.Equal(t, AvailabilityUnavailable, AvailabilityOn(entries, day, models.SlotEvening))

	otherDay := ts(t, "2026-05-05 00:00")
	assert.Equal(t, AvailabilityUnknown, AvailabilityOn(entries, otherDay, models.SlotMorning))
	assert.Equal(t, AvailabilityUnknown, AvailabilityOn(nil, day, models.SlotMorning))
}

func TestAvailabilityOnMatchesCalendarDayNotInstant(t *testing.T) {
	day := ts(t, "2026-05-04 00:00")
	entries := []models.AvailabilityEntry{
		{Date: day, Slot: models.SlotMorning, Available: true},
	}
	// A window starting mid-morning still matches the entry's calendar day.
	assert.Equal(t, AvailabilityAvailable, AvailabilityOn(entries, ts(t, "2026-05-04 09:45"), models.SlotMorning))
}
