package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/internal/rostering"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
)

type assignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByExamVenue(ctx context.Context, examVenueID string) ([]models.Assignment, error)
	ListActiveByInvigilators(ctx context.Context, invigilatorIDs []string) ([]models.Assignment, error)
	ListByInvigilator(ctx context.Context, invigilatorID string, includeCancelled bool) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	UpdateWindow(ctx context.Context, id string, start, end *time.Time, role string) error
	Delete(ctx context.Context, id string) error
	SetConfirmed(ctx context.Context, id string, confirmed bool) error
	RequestCancellation(ctx context.Context, id string, cause string, at time.Time) error
	WithdrawCancellation(ctx context.Context, id string) error
	ResolveCancellation(ctx context.Context, id string, approved bool) error
}

type assignmentRosterStore interface {
	Roster(ctx context.Context) ([]models.Invigilator, error)
	FindByID(ctx context.Context, id string) (*models.Invigilator, error)
}

type assignmentExamStore interface {
	FindExamVenue(ctx context.Context, id string) (*models.ExamVenue, error)
}

type assignmentAvailabilityStore interface {
	ListForInvigilators(ctx context.Context, invigilatorIDs []string, day time.Time) ([]models.AvailabilityEntry, error)
}

type assignmentNotifier interface {
	Dispatch(event AssignmentEvent)
}

// EligibleRosterRequest scopes an eligibility query to one exam-venue window.
type EligibleRosterRequest struct {
	ExamVenueID   string `validate:"required"`
	Query         string
	OnlyAvailable bool
}

// ReconcileRequest is the operator's desired end-state for a venue.
type ReconcileRequest struct {
	ExamVenueID string                    `validate:"required"`
	SelectedIDs []string                  `validate:"required"`
	Edits       map[string]AssignmentEditRequest
}

// AssignmentEditRequest overrides the default window for one invigilator.
type AssignmentEditRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
	Role  string     `json:"role"`
}

// CancellationRequest asks to release an invigilator from a shift.
type CancellationRequest struct {
	AssignmentID string `validate:"required"`
	Cause        string `validate:"required,max=500"`
}

// AssignmentService orchestrates eligibility queries, selection
// reconciliation and the cancellation workflow.
type AssignmentService struct {
	assignments  assignmentStore
	roster       assignmentRosterStore
	exams        assignmentExamStore
	availability assignmentAvailabilityStore
	notifier     assignmentNotifier
	location     *time.Location
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(
	assignments assignmentStore,
	roster assignmentRosterStore,
	exams assignmentExamStore,
	availability assignmentAvailabilityStore,
	notifier assignmentNotifier,
	location *time.Location,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}
	return &AssignmentService{
		assignments:  assignments,
		roster:       roster,
		exams:        exams,
		availability: availability,
		notifier:     notifier,
		location:     location,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Eligible returns the selectable roster for a venue, in roster order, with
// already-assigned invigilators kept visible regardless of filters.
func (s *AssignmentService) Eligible(ctx context.Context, req EligibleRosterRequest) ([]models.Invigilator, map[string]models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid eligibility query")
	}

	venue, err := s.loadExamVenue(ctx, req.ExamVenueID)
	if err != nil {
		return nil, nil, err
	}

	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	persisted, err := s.assignments.ListByExamVenue(ctx, venue.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue assignments")
	}
	assignedIDs := make(map[string]struct{}, len(persisted))
	byInvigilator := make(map[string]models.Assignment, len(persisted))
	for _, a := range persisted {
		assignedIDs[a.InvigilatorID] = struct{}{}
		byInvigilator[a.InvigilatorID] = a
	}

	rosterIDs := make([]string, len(roster))
	for i, inv := range roster {
		rosterIDs[i] = inv.ID
	}
	allAssignments, err := s.assignments.ListActiveByInvigilators(ctx, rosterIDs)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment conflicts")
	}

	if venue.StartAt != nil {
		entries, err := s.availability.ListForInvigilators(ctx, rosterIDs, venue.StartAt.In(s.location))
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
		}
		byID := make(map[string][]models.AvailabilityEntry, len(entries))
		for _, e := range entries {
			byID[e.InvigilatorID] = append(byID[e.InvigilatorID], e)
		}
		for i := range roster {
			roster[i].Availability = byID[roster[i].ID]
		}
	}

	eligible := rostering.FilterRoster(roster, rostering.FilterOptions{
		Query:         req.Query,
		OnlyAvailable: req.OnlyAvailable,
		Venue:         *venue,
		Assignments:   allAssignments,
		AssignedIDs:   assignedIDs,
		Location:      s.location,
	})
	return eligible, byInvigilator, nil
}

// Reconcile moves the venue's persisted assignments to the operator's
// selection. Removals run before additions; individual operation failures
// are collected per invigilator and the rest of the plan still executes.
func (s *AssignmentService) Reconcile(ctx context.Context, req ReconcileRequest) (rostering.SelectionDelta, error) {
	if err := s.validator.Struct(req); err != nil {
		return rostering.SelectionDelta{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection payload")
	}

	venue, err := s.loadExamVenue(ctx, req.ExamVenueID)
	if err != nil {
		return rostering.SelectionDelta{}, err
	}

	persisted, err := s.assignments.ListByExamVenue(ctx, venue.ID)
	if err != nil {
		return rostering.SelectionDelta{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue assignments")
	}

	sel := rostering.SelectionInput{
		Venue:       *venue,
		SelectedIDs: req.SelectedIDs,
		Edits:       make(map[string]rostering.AssignmentEdit, len(req.Edits)),
	}
	for id, edit := range req.Edits {
		sel.Edits[id] = rostering.AssignmentEdit{Start: edit.Start, End: edit.End, Role: strings.TrimSpace(edit.Role)}
	}

	if err := s.blockResignedAdds(ctx, sel, persisted); err != nil {
		return rostering.SelectionDelta{}, err
	}

	ops, err := rostering.PlanOperations(sel, persisted)
	if err != nil {
		switch {
		case errors.Is(err, rostering.ErrNoChanges):
			return rostering.SelectionDelta{}, appErrors.Clone(appErrors.ErrNoChanges, "selection matches the current assignments")
		case errors.Is(err, rostering.ErrInvalidInterval):
			return rostering.SelectionDelta{}, appErrors.Wrap(err, appErrors.ErrInvalidInterval.Code, appErrors.ErrInvalidInterval.Status, err.Error())
		case errors.Is(err, rostering.ErrMissingRole):
			return rostering.SelectionDelta{}, appErrors.Wrap(err, appErrors.ErrMissingRole.Code, appErrors.ErrMissingRole.Status, err.Error())
		default:
			return rostering.SelectionDelta{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to plan assignment changes")
		}
	}

	var failures []rostering.OperationFailure
	for _, op := range ops {
		if err := s.execute(ctx, op); err != nil {
			s.logger.Sugar().Errorw("assignment operation failed",
				"kind", op.Kind,
				"invigilator_id", op.InvigilatorID,
				"exam_venue_id", op.ExamVenueID,
				"error", err,
			)
			failures = append(failures, rostering.OperationFailure{
				InvigilatorID: op.InvigilatorID,
				DisplayName:   s.displayName(ctx, op.InvigilatorID),
				Action:        rostering.ActionForKind(op.Kind),
				Err:           err,
			})
			continue
		}
		s.notify(op)
	}

	delta := rostering.SelectionDelta{}
	for _, op := range ops {
		switch op.Kind {
		case rostering.OpAdd:
			delta.ToAdd = append(delta.ToAdd, op.InvigilatorID)
		case rostering.OpRemove:
			delta.ToRemove = append(delta.ToRemove, op.InvigilatorID)
		case rostering.OpUpdate:
			delta.ToUpdate = append(delta.ToUpdate, op.InvigilatorID)
		}
	}

	if applyErr := rostering.NewApplyError(failures); applyErr != nil {
		return delta, appErrors.Wrap(applyErr, appErrors.ErrApplyFailed.Code, appErrors.ErrApplyFailed.Status, applyErr.Error())
	}
	return delta, nil
}

// ListForInvigilator returns an invigilator's shifts.
func (s *AssignmentService) ListForInvigilator(ctx context.Context, invigilatorID string, includeCancelled bool) ([]models.Assignment, error) {
	if _, err := s.roster.FindByID(ctx, invigilatorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invigilator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invigilator")
	}
	assignments, err := s.assignments.ListByInvigilator(ctx, invigilatorID, includeCancelled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListForVenue returns the active assignments persisted for a venue window.
func (s *AssignmentService) ListForVenue(ctx context.Context, examVenueID string) ([]models.Assignment, error) {
	if _, err := s.loadExamVenue(ctx, examVenueID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByExamVenue(ctx, examVenueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list venue assignments")
	}
	return assignments, nil
}

// Confirm records whether an invigilator has accepted a shift.
func (s *AssignmentService) Confirm(ctx context.Context, assignmentID string, confirmed bool) error {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if assignment.Cancelled {
		return appErrors.Clone(appErrors.ErrConflict, "cancelled assignments cannot be confirmed")
	}
	if err := s.assignments.SetConfirmed(ctx, assignmentID, confirmed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record confirmation")
	}
	s.dispatchFor(ctx, assignment, EventConfirmationChanged, "")
	return nil
}

// RequestCancellation opens a cancellation request on an active assignment.
func (s *AssignmentService) RequestCancellation(ctx context.Context, req CancellationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	assignment, err := s.loadAssignment(ctx, req.AssignmentID)
	if err != nil {
		return err
	}
	if assignment.Cancelled {
		return appErrors.Clone(appErrors.ErrConflict, "assignment is already cancelled")
	}
	if assignment.CancelPending() {
		return appErrors.Clone(appErrors.ErrConflict, "a cancellation request is already pending")
	}
	now := s.now()
	if !shiftInFuture(assignment, now) {
		return appErrors.Clone(appErrors.ErrConflict, "only future shifts can be cancelled")
	}
	if err := s.assignments.RequestCancellation(ctx, req.AssignmentID, strings.TrimSpace(req.Cause), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record cancellation request")
	}
	s.dispatchFor(ctx, assignment, EventCancelRequested, req.Cause)
	return nil
}

// shiftInFuture reports whether the assignment's shift has not yet begun.
// An assignment without timing can always be cancelled.
func shiftInFuture(assignment *models.Assignment, now time.Time) bool {
	if assignment.AssignedStart != nil {
		return assignment.AssignedStart.After(now)
	}
	if assignment.AssignedEnd != nil {
		return assignment.AssignedEnd.After(now)
	}
	return true
}

// WithdrawCancellation clears a pending request before it is decided.
func (s *AssignmentService) WithdrawCancellation(ctx context.Context, assignmentID string) error {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !assignment.CancelPending() {
		return appErrors.Clone(appErrors.ErrConflict, "no cancellation request is pending")
	}
	if err := s.assignments.WithdrawCancellation(ctx, assignmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw cancellation request")
	}
	return nil
}

// ResolveCancellation approves or rejects a pending cancellation request.
func (s *AssignmentService) ResolveCancellation(ctx context.Context, assignmentID string, approved bool) error {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !assignment.CancelPending() {
		return appErrors.Clone(appErrors.ErrConflict, "no cancellation request is pending")
	}
	if err := s.assignments.ResolveCancellation(ctx, assignmentID, approved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve cancellation request")
	}
	kind := EventCancelRejected
	if approved {
		kind = EventCancelApproved
	}
	s.dispatchFor(ctx, assignment, kind, "")
	return nil
}

// blockResignedAdds rejects selections that would newly assign a resigned
// invigilator. Resigned staff already holding a shift stay editable.
func (s *AssignmentService) blockResignedAdds(ctx context.Context, sel rostering.SelectionInput, persisted []models.Assignment) error {
	existing := make(map[string]struct{}, len(persisted))
	for _, a := range persisted {
		existing[a.InvigilatorID] = struct{}{}
	}
	for _, id := range sel.SelectedIDs {
		if _, ok := existing[id]; ok {
			continue
		}
		inv, err := s.roster.FindByID(ctx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "selected invigilator not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selected invigilator")
		}
		if inv.Resigned {
			return appErrors.Clone(appErrors.ErrResigned, inv.DisplayName()+" has resigned and cannot be newly assigned")
		}
	}
	return nil
}

func (s *AssignmentService) execute(ctx context.Context, op rostering.Operation) error {
	switch op.Kind {
	case rostering.OpRemove:
		return s.assignments.Delete(ctx, op.AssignmentID)
	case rostering.OpAdd:
		assignment := &models.Assignment{
			InvigilatorID: op.InvigilatorID,
			ExamVenueID:   op.ExamVenueID,
			AssignedStart: op.Start,
			AssignedEnd:   op.End,
		}
		if op.Role != "" {
			role := op.Role
			assignment.Role = &role
		}
		return s.assignments.Create(ctx, assignment)
	case rostering.OpUpdate:
		return s.assignments.UpdateWindow(ctx, op.AssignmentID, op.Start, op.End, op.Role)
	default:
		return appErrors.Clone(appErrors.ErrInternal, "unknown assignment operation")
	}
}

func (s *AssignmentService) notify(op rostering.Operation) {
	if s.notifier == nil {
		return
	}
	kind := EventShiftUpdated
	switch op.Kind {
	case rostering.OpAdd:
		kind = EventAssigned
	case rostering.OpRemove:
		kind = EventUnassigned
	}
	s.notifier.Dispatch(AssignmentEvent{
		Kind:          kind,
		InvigilatorID: op.InvigilatorID,
		ExamVenueID:   op.ExamVenueID,
		Start:         op.Start,
		End:           op.End,
		Detail:        op.Role,
	})
}

func (s *AssignmentService) dispatchFor(ctx context.Context, assignment *models.Assignment, kind AssignmentEventKind, detail string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(AssignmentEvent{
		Kind:          kind,
		InvigilatorID: assignment.InvigilatorID,
		DisplayName:   s.displayName(ctx, assignment.InvigilatorID),
		ExamVenueID:   assignment.ExamVenueID,
		Start:         assignment.AssignedStart,
		End:           assignment.AssignedEnd,
		Detail:        detail,
	})
}

func (s *AssignmentService) displayName(ctx context.Context, invigilatorID string) string {
	inv, err := s.roster.FindByID(ctx, invigilatorID)
	if err != nil {
		return ""
	}
	return inv.DisplayName()
}

func (s *AssignmentService) loadExamVenue(ctx context.Context, id string) (*models.ExamVenue, error) {
	venue, err := s.exams.FindExamVenue(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam venue")
	}
	return venue, nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}
