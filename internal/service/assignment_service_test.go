package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
)

type mockAssignmentStore struct {
	items     map[string]*models.Assignment
	createErr error
	deleteErr error
	created   []string
	deleted   []string
	updated   []string
	confirmed map[string]bool
	requests  map[string]string
	resolved  map[string]bool
}

func newMockAssignmentStore(items ...*models.Assignment) *mockAssignmentStore {
	m := &mockAssignmentStore{
		items:     map[string]*models.Assignment{},
		confirmed: map[string]bool{},
		requests:  map[string]string{},
		resolved:  map[string]bool{},
	}
	for _, a := range items {
		cp := *a
		m.items[a.ID] = &cp
	}
	return m
}

func (m *mockAssignmentStore) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentStore) ListByExamVenue(ctx context.Context, examVenueID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.items {
		if a.ExamVenueID == examVenueID && !a.Cancelled {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAssignmentStore) ListActiveByInvigilators(ctx context.Context, ids []string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.items {
		if a.Cancelled {
			continue
		}
		for _, id := range ids {
			if a.InvigilatorID == id {
				out = append(out, *a)
				break
			}
		}
	}
	return out, nil
}

func (m *mockAssignmentStore) ListByInvigilator(ctx context.Context, id string, includeCancelled bool) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.items {
		if a.InvigilatorID != id {
			continue
		}
		if a.Cancelled && !includeCancelled {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAssignmentStore) Create(ctx context.Context, a *models.Assignment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if a.ID == "" {
		a.ID = "asg-" + a.InvigilatorID
	}
	cp := *a
	m.items[a.ID] = &cp
	m.created = append(m.created, a.InvigilatorID)
	return nil
}

func (m *mockAssignmentStore) UpdateWindow(ctx context.Context, id string, start, end *time.Time, role string) error {
	if a, ok := m.items[id]; ok {
		a.AssignedStart = start
		a.AssignedEnd = end
		if role == "" {
			a.Role = nil
		} else {
			a.Role = &role
		}
	}
	m.updated = append(m.updated, id)
	return nil
}

func (m *mockAssignmentStore) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAssignmentStore) SetConfirmed(ctx context.Context, id string, confirmed bool) error {
	m.confirmed[id] = confirmed
	return nil
}

func (m *mockAssignmentStore) RequestCancellation(ctx context.Context, id, cause string, at time.Time) error {
	m.requests[id] = cause
	if a, ok := m.items[id]; ok {
		a.CancelCause = &cause
		requested := at
		a.CancelRequestedAt = &requested
	}
	return nil
}

func (m *mockAssignmentStore) WithdrawCancellation(ctx context.Context, id string) error {
	delete(m.requests, id)
	if a, ok := m.items[id]; ok {
		a.CancelCause = nil
		a.CancelRequestedAt = nil
	}
	return nil
}

func (m *mockAssignmentStore) ResolveCancellation(ctx context.Context, id string, approved bool) error {
	m.resolved[id] = approved
	if a, ok := m.items[id]; ok {
		a.CancelRequestedAt = nil
		if approved {
			a.Cancelled = true
		} else {
			a.CancelCause = nil
		}
	}
	return nil
}

type mockRosterStore struct {
	roster []models.Invigilator
}

func (m *mockRosterStore) Roster(ctx context.Context) ([]models.Invigilator, error) {
	return m.roster, nil
}

func (m *mockRosterStore) FindByID(ctx context.Context, id string) (*models.Invigilator, error) {
	for _, inv := range m.roster {
		if inv.ID == id {
			cp := inv
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockExamStore struct {
	venues map[string]*models.ExamVenue
}

func (m *mockExamStore) FindExamVenue(ctx context.Context, id string) (*models.ExamVenue, error) {
	if ev, ok := m.venues[id]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockAvailabilityStore struct {
	entries []models.AvailabilityEntry
}

func (m *mockAvailabilityStore) ListForInvigilators(ctx context.Context, ids []string, day time.Time) ([]models.AvailabilityEntry, error) {
	return m.entries, nil
}

type recordingNotifier struct {
	events []AssignmentEvent
}

func (r *recordingNotifier) Dispatch(event AssignmentEvent) {
	r.events = append(r.events, event)
}

func assignmentFixture() (*mockAssignmentStore, *mockRosterStore, *mockExamStore, *mockAvailabilityStore, *recordingNotifier, *AssignmentService) {
	start := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	length := 120
	exams := &mockExamStore{venues: map[string]*models.ExamVenue{
		"ev-1": {ID: "ev-1", ExamID: "exam-1", VenueID: "venue-1", StartAt: &start, LengthMinutes: &length},
	}}
	roster := &mockRosterStore{roster: []models.Invigilator{
		{ID: "inv-1", FullName: "Ada Price"},
		{ID: "inv-2", FullName: "Rob Nye"},
		{ID: "inv-3", FullName: "Sue Mair", Resigned: true},
	}}
	end := start.Add(2 * time.Hour)
	assignments := newMockAssignmentStore(&models.Assignment{
		ID:            "asg-1",
		InvigilatorID: "inv-1",
		ExamVenueID:   "ev-1",
		AssignedStart: &start,
		AssignedEnd:   &end,
	})
	availability := &mockAvailabilityStore{}
	notifier := &recordingNotifier{}
	svc := NewAssignmentService(assignments, roster, exams, availability, notifier, time.UTC, validator.New(), zap.NewNop())
	return assignments, roster, exams, availability, notifier, svc
}

func TestAssignmentServiceReconcileAddAndRemove(t *testing.T) {
	assignments, _, _, _, notifier, svc := assignmentFixture()

	delta, err := svc.Reconcile(context.Background(), ReconcileRequest{
		ExamVenueID: "ev-1",
		SelectedIDs: []string{"inv-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-2"}, delta.ToAdd)
	assert.Equal(t, []string{"inv-1"}, delta.ToRemove)
	assert.Equal(t, []string{"asg-1"}, assignments.deleted)
	assert.Equal(t, []string{"inv-2"}, assignments.created)

	kinds := make([]AssignmentEventKind, 0, len(notifier.events))
	for _, e := range notifier.events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []AssignmentEventKind{EventUnassigned, EventAssigned}, kinds)
}

func TestAssignmentServiceReconcileNoChanges(t *testing.T) {
	_, _, _, _, _, svc := assignmentFixture()

	_, err := svc.Reconcile(context.Background(), ReconcileRequest{
		ExamVenueID: "ev-1",
		SelectedIDs: []string{"inv-1"},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNoChanges.Code, appErr.Code)
}

func TestAssignmentServiceReconcileBlocksResignedAdds(t *testing.T) {
	assignments, _, _, _, _, svc := assignmentFixture()

	_, err := svc.Reconcile(context.Background(), ReconcileRequest{
		ExamVenueID: "ev-1",
		SelectedIDs: []string{"inv-1", "inv-3"},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrResigned.Code, appErr.Code)
	assert.Empty(t, assignments.created)
}

func TestAssignmentServiceReconcileKeepsResignedAlreadyAssigned(t *testing.T) {
	start := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	length := 120
	exams := &mockExamStore{venues: map[string]*models.ExamVenue{
		"ev-1": {ID: "ev-1", ExamID: "exam-1", VenueID: "venue-1", StartAt: &start, LengthMinutes: &length},
	}}
	roster := &mockRosterStore{roster: []models.Invigilator{
		{ID: "inv-3", FullName: "Sue Mair", Resigned: true},
	}}
	assignments := newMockAssignmentStore(&models.Assignment{
		ID: "asg-3", InvigilatorID: "inv-3", ExamVenueID: "ev-1", AssignedStart: &start,
	})
	svc := NewAssignmentService(assignments, roster, exams, &mockAvailabilityStore{}, nil, time.UTC, validator.New(), zap.NewNop())

	newStart := start.Add(30 * time.Minute)
	end := start.Add(2 * time.Hour)
	delta, err := svc.Reconcile(context.Background(), ReconcileRequest{
		ExamVenueID: "ev-1",
		SelectedIDs: []string{"inv-3"},
		Edits: map[string]AssignmentEditRequest{
			"inv-3": {Start: &newStart, End: &end},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-3"}, delta.ToUpdate)
	assert.Equal(t, []string{"asg-3"}, assignments.updated)
}

func TestAssignmentServiceReconcileCollectsFailures(t *testing.T) {
	assignments, _, _, _, _, svc := assignmentFixture()
	assignments.createErr = errors.New("insert refused")

	delta, err := svc.Reconcile(context.Background(), ReconcileRequest{
		ExamVenueID: "ev-1",
		SelectedIDs: []string{"inv-1", "inv-2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to assign 1 invigilator: Rob Nye")
	// the plan still recorded what it attempted
	assert.Equal(t, []string{"inv-2"}, delta.ToAdd)
}

func TestAssignmentServiceEligibleKeepsAssignedVisible(t *testing.T) {
	_, _, _, _, _, svc := assignmentFixture()

	eligible, assigned, err := svc.Eligible(context.Background(), EligibleRosterRequest{
		ExamVenueID:   "ev-1",
		OnlyAvailable: true,
	})
	require.NoError(t, err)

	// No availability declarations exist, so only the already-assigned
	// invigilator survives the only-available filter.
	require.Len(t, eligible, 1)
	assert.Equal(t, "inv-1", eligible[0].ID)
	_, ok := assigned["inv-1"]
	assert.True(t, ok)
}

func TestAssignmentServiceEligibleUsesDeclarations(t *testing.T) {
	assignments, roster, exams, availability, _, _ := assignmentFixture()
	day := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	availability.entries = []models.AvailabilityEntry{
		{InvigilatorID: "inv-2", Date: day, Slot: models.SlotMorning, Available: true},
	}
	svc := NewAssignmentService(assignments, roster, exams, availability, nil, time.UTC, validator.New(), zap.NewNop())

	eligible, _, err := svc.Eligible(context.Background(), EligibleRosterRequest{
		ExamVenueID:   "ev-1",
		OnlyAvailable: true,
	})
	require.NoError(t, err)
	ids := make([]string, 0, len(eligible))
	for _, inv := range eligible {
		ids = append(ids, inv.ID)
	}
	assert.Equal(t, []string{"inv-1", "inv-2"}, ids)
}

func TestAssignmentServiceCancellationWorkflow(t *testing.T) {
	assignments, _, _, _, notifier, svc := assignmentFixture()
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	err := svc.RequestCancellation(context.Background(), CancellationRequest{
		AssignmentID: "asg-1",
		Cause:        "illness",
	})
	require.NoError(t, err)
	assert.Equal(t, "illness", assignments.requests["asg-1"])

	// a second request while one is pending is rejected
	err = svc.RequestCancellation(context.Background(), CancellationRequest{
		AssignmentID: "asg-1",
		Cause:        "other",
	})
	require.Error(t, err)

	require.NoError(t, svc.ResolveCancellation(context.Background(), "asg-1", true))
	assert.True(t, assignments.resolved["asg-1"])
	assert.True(t, assignments.items["asg-1"].Cancelled)

	kinds := make([]AssignmentEventKind, 0, len(notifier.events))
	for _, e := range notifier.events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []AssignmentEventKind{EventCancelRequested, EventCancelApproved}, kinds)
}

func TestAssignmentServiceCancellationRejectsPastShift(t *testing.T) {
	assignments, _, _, _, _, svc := assignmentFixture()
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	err := svc.RequestCancellation(context.Background(), CancellationRequest{
		AssignmentID: "asg-1",
		Cause:        "illness",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
	assert.Empty(t, assignments.requests)

	// At the shift start the window is no longer in the future either.
	svc.now = func() time.Time { return time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC) }
	err = svc.RequestCancellation(context.Background(), CancellationRequest{
		AssignmentID: "asg-1",
		Cause:        "illness",
	})
	require.Error(t, err)
}

func TestAssignmentServiceWithdrawWithoutPending(t *testing.T) {
	_, _, _, _, _, svc := assignmentFixture()

	err := svc.WithdrawCancellation(context.Background(), "asg-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAssignmentServiceConfirmCancelled(t *testing.T) {
	assignments, roster, exams, availability, _, _ := assignmentFixture()
	assignments.items["asg-1"].Cancelled = true
	svc := NewAssignmentService(assignments, roster, exams, availability, nil, time.UTC, validator.New(), zap.NewNop())

	err := svc.Confirm(context.Background(), "asg-1", true)
	require.Error(t, err)
}
