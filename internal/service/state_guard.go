package service

import (
	"fmt"

	"github.com/ravi1997/spars/internal/model/entity"
)

// The state guard is a pure function of (survey state, caller roles). It
// holds no state of its own and must pass before any write is attempted.

func hasRole(roles []string, name string) bool {
	for _, r := range roles {
		if r == name {
			return true
		}
	}
	return false
}

// CanEdit decides whether the caller may mutate the survey definition.
// Only the creator or a listed editor may edit, and only while the survey
// is in the create state. SUPERADMIN overrides both gates.
func CanEdit(survey *entity.Survey, userID string, roles []string) error {
	if hasRole(roles, entity.RoleSuperadmin) {
		return nil
	}
	if survey.State != entity.SurveyStateCreate {
		return fmt.Errorf("%w: editing is not allowed in this state", ErrForbidden)
	}
	if survey.CreatedByUserID != userID && !survey.IsEditor(userID) {
		return fmt.Errorf("%w: only the creator or a listed editor can edit this survey", ErrForbidden)
	}
	return nil
}

// CanSubmit decides whether a caller holding the given roles may submit
// answers to a survey in the given state. A closed survey admits nobody;
// an unknown state is a configuration fault, not a caller error.
func CanSubmit(state string, roles []string) error {
	switch state {
	case entity.SurveyStateCreate:
		return fmt.Errorf("%w: this survey is not accepting responses yet", ErrForbidden)
	case entity.SurveyStateTesting:
		if !hasRole(roles, entity.RoleTester) {
			return fmt.Errorf("%w: only testers can submit answers for surveys in the testing phase", ErrForbidden)
		}
		return nil
	case entity.SurveyStateRelease:
		if !hasRole(roles, entity.RoleTester) && !hasRole(roles, entity.RoleNormal) {
			return fmt.Errorf("%w: only normal or tester users can submit answers for surveys in the release phase", ErrForbidden)
		}
		return nil
	case entity.SurveyStateClose:
		return fmt.Errorf("%w: this survey is closed and cannot accept responses", ErrForbidden)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
}

// CanTransition decides whether a survey may move to the requested state.
// Transitions are forward only: create -> testing -> release -> close.
func CanTransition(from, to string) error {
	order := map[string]int{
		entity.SurveyStateCreate:  0,
		entity.SurveyStateTesting: 1,
		entity.SurveyStateRelease: 2,
		entity.SurveyStateClose:   3,
	}
	fromIdx, ok := order[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, from)
	}
	toIdx, ok := order[to]
	if !ok {
		return fmt.Errorf("%w: unknown target state %q", ErrValidation, to)
	}
	if toIdx <= fromIdx {
		return fmt.Errorf("%w: cannot move survey from %q to %q", ErrForbidden, from, to)
	}
	return nil
}
