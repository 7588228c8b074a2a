package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/internal/rostering"
)

type mockVenueRepo struct {
	venues       []models.Venue
	capabilities map[string][]string
}

func (m *mockVenueRepo) List(ctx context.Context, filter models.VenueFilter) ([]models.Venue, int, error) {
	return m.venues, len(m.venues), nil
}

func (m *mockVenueRepo) ListAll(ctx context.Context) ([]models.Venue, error) {
	return m.venues, nil
}

func (m *mockVenueRepo) FindByID(ctx context.Context, id string) (*models.Venue, error) {
	for _, v := range m.venues {
		if v.ID == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockVenueRepo) Create(ctx context.Context, venue *models.Venue) error {
	if venue.ID == "" {
		venue.ID = "generated"
	}
	m.venues = append(m.venues, *venue)
	return nil
}

func (m *mockVenueRepo) Update(ctx context.Context, venue *models.Venue) error {
	for i := range m.venues {
		if m.venues[i].ID == venue.ID {
			m.venues[i] = *venue
		}
	}
	return nil
}

func (m *mockVenueRepo) ReplaceCapabilities(ctx context.Context, venueID string, codes []string) error {
	if m.capabilities == nil {
		m.capabilities = map[string][]string{}
	}
	m.capabilities[venueID] = codes
	return nil
}

func (m *mockVenueRepo) LoadCapabilities(ctx context.Context, venues []models.Venue) error {
	return nil
}

type mockVenueExamRepo struct {
	venues  map[string]*models.ExamVenue
	windows map[string][]models.ExamVenue
}

func (m *mockVenueExamRepo) FindExamVenue(ctx context.Context, id string) (*models.ExamVenue, error) {
	if ev, ok := m.venues[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVenueExamRepo) ListWindowsByVenues(ctx context.Context, venueIDs []string) (map[string][]models.ExamVenue, error) {
	return m.windows, nil
}

func TestVenueServiceNormalizeRequirement(t *testing.T) {
	svc := NewVenueService(&mockVenueRepo{}, &mockVenueExamRepo{}, nil, 0, validator.New(), zap.NewNop())

	codes, err := svc.NormalizeRequirement(context.Background(), ToggleRequirementRequest{
		Selected: []string{rostering.CapSeparateRoomOnOwn},
		Toggled:  rostering.CapSeparateRoomNotOnOwn,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{rostering.CapSeparateRoomNotOnOwn}, codes)
}

func TestVenueServiceMatchExcludesClashingOnOwnRooms(t *testing.T) {
	start := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	length := 120
	otherStart := start.Add(time.Hour)
	otherLength := 60

	repo := &mockVenueRepo{venues: []models.Venue{
		{ID: "hall", Name: "Main Hall", Type: models.VenueTypeMainHall},
		{ID: "room-1", Name: "Room 1", Type: models.VenueTypeSeparateRoom, Capabilities: []string{rostering.CapSeparateRoomOnOwn, rostering.CapUseComputer}},
		{ID: "room-2", Name: "Room 2", Type: models.VenueTypeSeparateRoom, Capabilities: []string{rostering.CapSeparateRoomOnOwn}},
	}}
	exams := &mockVenueExamRepo{
		venues: map[string]*models.ExamVenue{
			"ev-1": {ID: "ev-1", ExamID: "exam-1", VenueID: "hall", StartAt: &start, LengthMinutes: &length},
		},
		windows: map[string][]models.ExamVenue{
			"room-2": {{ID: "ev-other", ExamID: "exam-2", VenueID: "room-2", StartAt: &otherStart, LengthMinutes: &otherLength}},
		},
	}
	svc := NewVenueService(repo, exams, nil, 0, validator.New(), zap.NewNop())

	venues, err := svc.Match(context.Background(), MatchVenuesRequest{
		ExamVenueID: "ev-1",
		Requirement: []string{rostering.CapSeparateRoomOnOwn, rostering.CapUseComputer},
	})
	require.NoError(t, err)

	// the hall is not a separate room and room-2 hosts an overlapping
	// sitting, so only room-1 qualifies
	require.Len(t, venues, 1)
	assert.Equal(t, "room-1", venues[0].ID)
}

func TestVenueServiceCreateWithCapabilities(t *testing.T) {
	repo := &mockVenueRepo{}
	svc := NewVenueService(repo, &mockVenueExamRepo{}, nil, 0, validator.New(), zap.NewNop())

	venue, err := svc.Create(context.Background(), CreateVenueRequest{
		Name:         "Sports Hall",
		Type:         models.VenueTypeMainHall,
		Capacity:     300,
		Capabilities: []string{rostering.CapAccessibleHall},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{rostering.CapAccessibleHall}, repo.capabilities[venue.ID])
}
