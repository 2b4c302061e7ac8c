package entity

import (
	"time"
)

// Survey lifecycle states
const (
	SurveyStateCreate  = "create"
	SurveyStateTesting = "testing"
	SurveyStateRelease = "release"
	SurveyStateClose   = "close"
)

// Question types
const (
	QuestionTypeText           = "text"
	QuestionTypeNumber         = "number"
	QuestionTypeDate           = "date"
	QuestionTypeSingleChoice   = "single-choice"
	QuestionTypeMultipleChoice = "multiple-choice"
	QuestionTypeFile           = "file"
	QuestionTypeImage          = "image"
)

// Constraint types
const (
	ConstraintMaxLength = "max_length"
	ConstraintMinLength = "min_length"
	ConstraintRegex     = "regex"
	ConstraintMinValue  = "min_value"
	ConstraintMaxValue  = "max_value"
)

// Survey definition. Questions cascade on delete.
type Survey struct {
	ID              int       `json:"id" gorm:"primaryKey"`
	Title           string    `json:"title" gorm:"size:255;not null"`
	Description     string    `json:"description" gorm:"type:text"`
	State           string    `json:"state" gorm:"size:20;not null;default:create"`
	CreatedByUserID string    `json:"created_by_user_id" gorm:"size:36;not null"`
	IsDeleted       bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	CreatedBy *User      `json:"created_by,omitempty" gorm:"foreignKey:CreatedByUserID"`
	Editors   []User     `json:"editors,omitempty" gorm:"many2many:survey_editors;"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:SurveyID;constraint:OnDelete:CASCADE"`
}

func (Survey) TableName() string {
	return "surveys"
}

// IsEditor reports whether the user is listed as a named editor.
func (s *Survey) IsEditor(userID string) bool {
	for _, u := range s.Editors {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Question belongs to one survey. A non-nil ParentQuestionID/ParentOptionID
// pair makes the question visible only when that option was selected on the
// parent question.
type Question struct {
	ID               int       `json:"id" gorm:"primaryKey"`
	SurveyID         int       `json:"survey_id" gorm:"not null;index"`
	Text             string    `json:"text" gorm:"type:text;not null"`
	QuestionType     string    `json:"question_type" gorm:"size:50;not null"`
	IsRequired       bool      `json:"is_required" gorm:"not null;default:true"`
	DefaultValue     string    `json:"default_value" gorm:"type:text"`
	ParentQuestionID *int      `json:"parent_question_id"`
	ParentOptionID   *int      `json:"parent_option_id"`
	Sequence         int       `json:"sequence" gorm:"not null;default:0"`
	IsDeleted        bool      `json:"is_deleted" gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Options     []Option             `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	Constraints []QuestionConstraint `json:"constraints,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// HasOptions reports whether the question type carries an option list.
func (q *Question) HasOptions() bool {
	return q.QuestionType == QuestionTypeSingleChoice || q.QuestionType == QuestionTypeMultipleChoice
}

// IsFileType reports whether the answer must carry a file reference.
func (q *Question) IsFileType() bool {
	return q.QuestionType == QuestionTypeFile || q.QuestionType == QuestionTypeImage
}

// Option of a choice question. May be referenced by child questions as a
// branch trigger.
type Option struct {
	ID         int       `json:"id" gorm:"primaryKey"`
	QuestionID int       `json:"question_id" gorm:"not null;index"`
	Text       string    `json:"text" gorm:"size:255;not null"`
	SortOrder  int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Option) TableName() string {
	return "options"
}

// QuestionConstraint is declarative; it is enforced at submission time,
// not at the storage layer.
type QuestionConstraint struct {
	ID              int       `json:"id" gorm:"primaryKey"`
	QuestionID      int       `json:"question_id" gorm:"not null;index"`
	ConstraintType  string    `json:"constraint_type" gorm:"size:50;not null"`
	ConstraintValue string    `json:"constraint_value" gorm:"type:text;not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (QuestionConstraint) TableName() string {
	return "question_constraints"
}
