package service

import (
	"errors"
	"testing"

	"github.com/ravi1997/spars/internal/model/entity"
)

func TestCanEdit(t *testing.T) {
	creator := "11111111-1111-1111-1111-111111111111"
	editor := "22222222-2222-2222-2222-222222222222"
	stranger := "33333333-3333-3333-3333-333333333333"

	survey := &entity.Survey{
		ID:              1,
		State:           entity.SurveyStateCreate,
		CreatedByUserID: creator,
		Editors:         []entity.User{{ID: editor}},
	}

	tests := []struct {
		name    string
		state   string
		userID  string
		roles   []string
		wantErr bool
	}{
		{"creator in create state", entity.SurveyStateCreate, creator, []string{entity.RoleAdmin}, false},
		{"listed editor in create state", entity.SurveyStateCreate, editor, []string{entity.RoleAdmin}, false},
		{"stranger in create state", entity.SurveyStateCreate, stranger, []string{entity.RoleAdmin}, true},
		{"creator after testing begins", entity.SurveyStateTesting, creator, []string{entity.RoleAdmin}, true},
		{"creator after release", entity.SurveyStateRelease, creator, []string{entity.RoleAdmin}, true},
		{"creator after close", entity.SurveyStateClose, creator, []string{entity.RoleAdmin}, true},
		{"superadmin overrides state gate", entity.SurveyStateRelease, stranger, []string{entity.RoleSuperadmin}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			survey.State = tt.state
			err := CanEdit(survey, tt.userID, tt.roles)
			if tt.wantErr {
				if !errors.Is(err, ErrForbidden) {
					t.Fatalf("expected ErrForbidden, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCanSubmit(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		roles   []string
		wantErr error
	}{
		{"tester during testing", entity.SurveyStateTesting, []string{entity.RoleTester}, nil},
		{"normal during testing", entity.SurveyStateTesting, []string{entity.RoleNormal}, ErrForbidden},
		{"normal during release", entity.SurveyStateRelease, []string{entity.RoleNormal}, nil},
		{"tester during release", entity.SurveyStateRelease, []string{entity.RoleTester}, nil},
		{"admin only during release", entity.SurveyStateRelease, []string{entity.RoleAdmin}, ErrForbidden},
		{"anyone during create", entity.SurveyStateCreate, []string{entity.RoleTester, entity.RoleNormal}, ErrForbidden},
		{"tester after close", entity.SurveyStateClose, []string{entity.RoleTester}, ErrForbidden},
		{"normal after close", entity.SurveyStateClose, []string{entity.RoleNormal}, ErrForbidden},
		{"unknown state is a fault", "archived", []string{entity.RoleNormal}, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanSubmit(tt.state, tt.roles)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{"create to testing", entity.SurveyStateCreate, entity.SurveyStateTesting, nil},
		{"testing to release", entity.SurveyStateTesting, entity.SurveyStateRelease, nil},
		{"release to close", entity.SurveyStateRelease, entity.SurveyStateClose, nil},
		{"create straight to close", entity.SurveyStateCreate, entity.SurveyStateClose, nil},
		{"release back to create", entity.SurveyStateRelease, entity.SurveyStateCreate, ErrForbidden},
		{"same state", entity.SurveyStateTesting, entity.SurveyStateTesting, ErrForbidden},
		{"unknown target", entity.SurveyStateCreate, "archived", ErrValidation},
		{"unknown source is a fault", "archived", entity.SurveyStateClose, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
