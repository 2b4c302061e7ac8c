package entity

import (
	"time"
)

// SurveyAttempt records exactly one submission event. Immutable once
// created; answers reference it.
type SurveyAttempt struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	SurveyID    int       `json:"survey_id" gorm:"not null;index"`
	UserID      string    `json:"user_id" gorm:"size:36;not null;index"`
	AttemptedAt time.Time `json:"attempted_at" gorm:"not null"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (SurveyAttempt) TableName() string {
	return "survey_attempts"
}

// Answer to one question within one attempt. Carries a text value, a file
// reference, or a selected option depending on the question type.
type Answer struct {
	ID               int       `json:"id" gorm:"primaryKey"`
	SurveyID         int       `json:"survey_id" gorm:"not null;index"`
	QuestionID       int       `json:"question_id" gorm:"not null;index"`
	AttemptID        int       `json:"attempt_id" gorm:"not null;index"`
	AnswerText       string    `json:"answer_text" gorm:"type:text"`
	AnswerFile       string    `json:"answer_file" gorm:"size:255"`
	SelectedOptionID *int      `json:"selected_option_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Answer) TableName() string {
	return "answers"
}
