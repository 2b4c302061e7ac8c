package repository

import (
	"context"
	"errors"

	"github.com/ravi1997/spars/internal/model/entity"
	"gorm.io/gorm"
)

// AnswerRepository owns attempt and answer rows.
type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// SubmitBatch inserts one attempt row and all its answers in a single
// transaction. Either the attempt and every answer land, or nothing does.
func (r *AnswerRepository) SubmitBatch(ctx context.Context, attempt *entity.SurveyAttempt, answers []entity.Answer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].AttemptID = attempt.ID
		}
		if len(answers) > 0 {
			if err := tx.CreateInBatches(answers, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListForUser returns the caller's own answers for a survey, joined
// through their attempts.
func (r *AnswerRepository) ListForUser(ctx context.Context, surveyID int, userID string) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.WithContext(ctx).
		Joins("JOIN survey_attempts ON survey_attempts.id = answers.attempt_id").
		Where("survey_attempts.survey_id = ? AND survey_attempts.user_id = ?", surveyID, userID).
		Preload("Question").
		Order("answers.id ASC").
		Find(&answers).Error
	return answers, err
}

// ListForSurvey returns every answer for a survey. Admin-scoped read.
func (r *AnswerRepository) ListForSurvey(ctx context.Context, surveyID int) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Preload("Question").
		Order("id ASC").
		Find(&answers).Error
	return answers, err
}

// ListForAttempt returns the answers of one attempt.
func (r *AnswerRepository) ListForAttempt(ctx context.Context, attemptID int) ([]entity.Answer, error) {
	var answers []entity.Answer
	err := r.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Preload("Question").
		Order("id ASC").
		Find(&answers).Error
	return answers, err
}

// FindByID loads one answer of a survey.
func (r *AnswerRepository) FindByID(ctx context.Context, surveyID, answerID int) (*entity.Answer, error) {
	var answer entity.Answer
	err := r.db.WithContext(ctx).
		Where("id = ? AND survey_id = ?", answerID, surveyID).
		Preload("Question").
		First(&answer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &answer, nil
}

// FindAttempt loads one attempt row.
func (r *AnswerRepository) FindAttempt(ctx context.Context, attemptID int) (*entity.SurveyAttempt, error) {
	var attempt entity.SurveyAttempt
	err := r.db.WithContext(ctx).First(&attempt, attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// Update persists changed answer fields.
func (r *AnswerRepository) Update(ctx context.Context, answer *entity.Answer) error {
	return r.db.WithContext(ctx).Save(answer).Error
}

// Delete removes one answer row.
func (r *AnswerRepository) Delete(ctx context.Context, surveyID, answerID int) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND survey_id = ?", answerID, surveyID).
		Delete(&entity.Answer{}).Error
}

// CountAttempts returns the number of attempts recorded for a survey.
func (r *AnswerRepository) CountAttempts(ctx context.Context, surveyID int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.SurveyAttempt{}).
		Where("survey_id = ?", surveyID).
		Count(&count).Error
	return count, err
}
