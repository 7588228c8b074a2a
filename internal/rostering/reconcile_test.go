package rostering

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/invigil-api/internal/models"
)

func persistedAssignment(t *testing.T, id, invigilatorID string) models.Assignment {
	t.Helper()
	role := "invigilator"
	return models.Assignment{
		ID:            id,
		InvigilatorID: invigilatorID,
		ExamVenueID:   "ev-2",
		AssignedStart: tsp(t, "2026-05-04 09:30"),
		AssignedEnd:   tsp(t, "2026-05-04 11:30"),
		Role:          &role,
	}
}

func selection(t *testing.T, ids ...string) SelectionInput {
	t.Helper()
	return SelectionInput{
		Venue:       testVenue(t),
		SelectedIDs: ids,
		Edits:       map[string]AssignmentEdit{},
	}
}

func TestComputeDeltaAddRemove(t *testing.T) {
	persisted := []models.Assignment{
		persistedAssignment(t, "a-1", "inv-1"),
		persistedAssignment(t, "a-3", "inv-3"),
	}
	sel := selection(t, "inv-1", "inv-2")
	sel.Edits["inv-1"] = AssignmentEdit{
		Start: tsp(t, "2026-05-04 09:30"),
		End:   tsp(t, "2026-05-04 11:30"),
		Role:  "invigilator",
	}

	delta := ComputeDelta(sel, persisted)
	assert.Equal(t, []string{"inv-2"}, delta.ToAdd)
	assert.Equal(t, []string{"inv-3"}, delta.ToRemove)
	assert.Empty(t, delta.ToUpdate)
	assert.True(t, delta.HasChanges())
}

func TestComputeDeltaUpdateDetection(t *testing.T) {
	persisted := []models.Assignment{persistedAssignment(t, "a-1", "inv-1")}

	t.Run("seconds are ignored", func(t *testing.T) {
		sel := selection(t, "inv-1")
		start := ts(t, "2026-05-04 09:30").Add(30 * time.Second)
		end := ts(t, "2026-05-04 11:30")
		sel.Edits["inv-1"] = AssignmentEdit{Start: &start, End: &end, Role: "invigilator"}

		delta := ComputeDelta(sel, persisted)
		assert.False(t, delta.HasChanges())
	})

	t.Run("minute change detected", func(t *testing.T) {
		sel := selection(t, "inv-1")
		sel.Edits["inv-1"] = AssignmentEdit{
			Start: tsp(t, "2026-05-04 09:45"),
			End:   tsp(t, "2026-05-04 11:30"),
			Role:  "invigilator",
		}
		delta := ComputeDelta(sel, persisted)
		assert.Equal(t, []string{"inv-1"}, delta.ToUpdate)
	})

	t.Run("role change detected", func(t *testing.T) {
		sel := selection(t, "inv-1")
		sel.Edits["inv-1"] = AssignmentEdit{
			Start: tsp(t, "2026-05-04 09:30"),
			End:   tsp(t, "2026-05-04 11:30"),
			Role:  "senior",
		}
		delta := ComputeDelta(sel, persisted)
		assert.Equal(t, []string{"inv-1"}, delta.ToUpdate)
	})

	t.Run("absent role equals empty string", func(t *testing.T) {
		noRole := persistedAssignment(t, "a-1", "inv-1")
		noRole.Role = nil
		sel := selection(t, "inv-1")
		sel.Edits["inv-1"] = AssignmentEdit{
			Start: tsp(t, "2026-05-04 09:30"),
			End:   tsp(t, "2026-05-04 11:30"),
		}
		delta := ComputeDelta(sel, []models.Assignment{noRole})
		assert.False(t, delta.HasChanges())
	})
}

func TestComputeDeltaDefaultsToVenueWindow(t *testing.T) {
	// A selected invigilator with no explicit edit inherits the venue
	// window, so a persisted assignment matching that window is unchanged
	// apart from the missing role.
	persisted := persistedAssignment(t, "a-1", "inv-1")
	persisted.Role = nil
	sel := selection(t, "inv-1")

	delta := ComputeDelta(sel, []models.Assignment{persisted})
	assert.False(t, delta.HasChanges())
}

func TestComputeDeltaIdempotent(t *testing.T) {
	persisted := []models.Assignment{persistedAssignment(t, "a-1", "inv-1")}
	sel := selection(t, "inv-1", "inv-2")

	first := ComputeDelta(sel, persisted)
	second := ComputeDelta(sel, persisted)
	assert.Equal(t, first, second)
}

func TestComputeDeltaIgnoresDuplicateSelection(t *testing.T) {
	delta := ComputeDelta(selection(t, "inv-2", "inv-2"), nil)
	assert.Equal(t, []string{"inv-2"}, delta.ToAdd)
}

func TestComputeDeltaCollapsesDuplicatePersistedRows(t *testing.T) {
	persisted := []models.Assignment{
		persistedAssignment(t, "a-1", "inv-1"),
		persistedAssignment(t, "a-2", "inv-1"),
	}

	delta := ComputeDelta(selection(t, "inv-2"), persisted)
	assert.Equal(t, []string{"inv-2"}, delta.ToAdd)
	assert.Equal(t, []string{"inv-1"}, delta.ToRemove)
}

func TestValidateEdit(t *testing.T) {
	valid := AssignmentEdit{
		Start: tsp(t, "2026-05-04 09:30"),
		End:   tsp(t, "2026-05-04 11:30"),
		Role:  "invigilator",
	}
	assert.NoError(t, ValidateEdit(valid))

	missingEnd := valid
	missingEnd.End = nil
	assert.ErrorIs(t, ValidateEdit(missingEnd), ErrInvalidInterval)

	inverted := valid
	inverted.Start, inverted.End = inverted.End, inverted.Start
	assert.ErrorIs(t, ValidateEdit(inverted), ErrInvalidInterval)

	noRole := valid
	noRole.Role = "  "
	assert.ErrorIs(t, ValidateEdit(noRole), ErrMissingRole)
}

func TestPlanOperationsOrdersRemovesBeforeAdds(t *testing.T) {
	persisted := []models.Assignment{persistedAssignment(t, "a-3", "inv-3")}
	sel := selection(t, "inv-2")
	sel.Edits["inv-2"] = AssignmentEdit{
		Start: tsp(t, "2026-05-04 09:30"),
		End:   tsp(t, "2026-05-04 11:30"),
		Role:  "invigilator",
	}

	ops, err := PlanOperations(sel, persisted)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpRemove, ops[0].Kind)
	assert.Equal(t, "a-3", ops[0].AssignmentID)
	assert.Equal(t, OpAdd, ops[1].Kind)
	assert.Equal(t, "inv-2", ops[1].InvigilatorID)
	assert.Equal(t, "ev-2", ops[1].ExamVenueID)
}

func TestPlanOperationsEmptyDelta(t *testing.T) {
	persisted := []models.Assignment{persistedAssignment(t, "a-1", "inv-1")}
	sel := selection(t, "inv-1")
	sel.Edits["inv-1"] = AssignmentEdit{
		Start: tsp(t, "2026-05-04 09:30"),
		End:   tsp(t, "2026-05-04 11:30"),
		Role:  "invigilator",
	}

	_, err := PlanOperations(sel, persisted)
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestPlanOperationsValidationAborts(t *testing.T) {
	sel := selection(t, "inv-2")
	sel.Edits["inv-2"] = AssignmentEdit{Role: "invigilator"}

	ops, err := PlanOperations(sel, nil)
	assert.Nil(t, ops)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestPlanOperationsUpdateCarriesEdit(t *testing.T) {
	persisted := []models.Assignment{persistedAssignment(t, "a-1", "inv-1")}
	sel := selection(t, "inv-1")
	sel.Edits["inv-1"] = AssignmentEdit{
		Start: tsp(t, "2026-05-04 10:00"),
		End:   tsp(t, "2026-05-04 12:00"),
		Role:  "senior",
	}

	ops, err := PlanOperations(sel, persisted)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpUpdate, ops[0].Kind)
	assert.Equal(t, "a-1", ops[0].AssignmentID)
	assert.Equal(t, "senior", ops[0].Role)
	assert.Equal(t, ts(t, "2026-05-04 10:00"), *ops[0].Start)
}

func TestApplyErrorSummary(t *testing.T) {
	err := NewApplyError([]OperationFailure{
		{InvigilatorID: "inv-1", DisplayName: "Ada Price", Action: ActionAssign, Err: errors.New("boom")},
		{InvigilatorID: "inv-2", DisplayName: "Rob Nye", Action: ActionUnassign, Err: errors.New("boom")},
	})
	require.Error(t, err)
	assert.Equal(t, "failed to assign/unassign 2 invigilators: Ada Price, Rob Nye", err.Error())

	var applyErr *ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Len(t, applyErr.Failures, 2)
}

func TestApplyErrorSingleFailure(t *testing.T) {
	err := NewApplyError([]OperationFailure{
		{InvigilatorID: "inv-9", Action: ActionUpdate, Err: errors.New("boom")},
	})
	require.Error(t, err)
	assert.Equal(t, "failed to update 1 invigilator: inv-9", err.Error())

	assert.NoError(t, NewApplyError(nil))
}
