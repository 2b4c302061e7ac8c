package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ravi1997/spars/internal/model/entity"
	"gorm.io/gorm"
)

// SurveyRepository owns the survey aggregate: survey, questions, options
// and constraints. Every multi-row effect runs inside one transaction.
type SurveyRepository struct {
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

// FindByID loads a survey with its full question tree in definition order.
func (r *SurveyRepository) FindByID(ctx context.Context, id int) (*entity.Survey, error) {
	var survey entity.Survey
	err := r.db.WithContext(ctx).
		Preload("Editors").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("sequence ASC, id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Questions.Constraints").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&survey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &survey, nil
}

// List returns all surveys with their question trees.
func (r *SurveyRepository) List(ctx context.Context) ([]entity.Survey, error) {
	var surveys []entity.Survey
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("sequence ASC, id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Questions.Constraints").
		Where("is_deleted = ?", false).
		Order("id ASC").
		Find(&surveys).Error
	return surveys, err
}

// Create inserts a survey and its nested questions, options and
// constraints atomically. No partial survey is ever visible.
//
// Incoming questions may carry branch references in payload form: the ID
// field is a client-chosen label, ParentQuestionID names the label of the
// parent question and ParentOptionID the 1-based position of the trigger
// option within the parent's option list. The references are rewritten to
// the generated row ids in a second pass inside the same transaction.
func (r *SurveyRepository) Create(ctx context.Context, survey *entity.Survey, questions []entity.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(survey).Error; err != nil {
			return err
		}
		links := make([]questionLink, len(questions))
		for i := range questions {
			q := &questions[i]
			links[i] = questionLink{
				payloadID: q.ID,
				parentRef: q.ParentQuestionID,
				optionPos: q.ParentOptionID,
			}
			q.ID = 0
			q.ParentQuestionID = nil
			q.ParentOptionID = nil
			q.SurveyID = survey.ID
			q.Sequence = i
			options := q.Options
			constraints := q.Constraints
			q.Options = nil
			q.Constraints = nil
			if err := tx.Create(q).Error; err != nil {
				return err
			}
			if err := insertChildren(tx, q.ID, options, constraints); err != nil {
				return err
			}
			q.Options = options
			q.Constraints = constraints
			links[i].realID = q.ID
			for _, o := range options {
				links[i].optionIDs = append(links[i].optionIDs, o.ID)
			}
		}
		if err := applyParentLinks(tx, links); err != nil {
			return err
		}
		survey.Questions = questions
		return nil
	})
}

// ReplaceDefinition reconciles the persisted question set against the
// incoming one: known ids are updated in place with their option and
// constraint sets replaced, unknown ids are inserted, and persisted
// questions absent from the payload are deleted along with their
// dependents. The whole reconciliation is one transaction, so replaying
// the same payload yields the same persisted state.
func (r *SurveyRepository) ReplaceDefinition(ctx context.Context, survey *entity.Survey, incoming []entity.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Survey{}).
			Where("id = ?", survey.ID).
			Updates(map[string]interface{}{
				"title":       survey.Title,
				"description": survey.Description,
				"updated_at":  time.Now(),
			}).Error; err != nil {
			return err
		}

		existing := make(map[int]bool, len(survey.Questions))
		for _, q := range survey.Questions {
			existing[q.ID] = true
		}

		kept := make(map[int]bool, len(incoming))
		links := make([]questionLink, len(incoming))
		for i := range incoming {
			q := &incoming[i]
			links[i] = questionLink{
				payloadID: q.ID,
				parentRef: q.ParentQuestionID,
				optionPos: q.ParentOptionID,
			}
			q.SurveyID = survey.ID
			q.Sequence = i
			q.ParentQuestionID = nil
			q.ParentOptionID = nil
			options := q.Options
			constraints := q.Constraints
			q.Options = nil
			q.Constraints = nil

			if q.ID != 0 && existing[q.ID] {
				if err := tx.Model(&entity.Question{}).
					Where("id = ? AND survey_id = ?", q.ID, survey.ID).
					Updates(map[string]interface{}{
						"text":          q.Text,
						"question_type": q.QuestionType,
						"is_required":   q.IsRequired,
						"default_value": q.DefaultValue,
						"sequence":      q.Sequence,
						"updated_at":    time.Now(),
					}).Error; err != nil {
					return err
				}
				// Replace the option and constraint sets, scoped to this question.
				if err := tx.Where("question_id = ?", q.ID).Delete(&entity.Option{}).Error; err != nil {
					return err
				}
				if err := tx.Where("question_id = ?", q.ID).Delete(&entity.QuestionConstraint{}).Error; err != nil {
					return err
				}
			} else {
				q.ID = 0
				if err := tx.Create(q).Error; err != nil {
					return err
				}
			}

			if err := insertChildren(tx, q.ID, options, constraints); err != nil {
				return err
			}
			q.Options = options
			q.Constraints = constraints
			links[i].realID = q.ID
			for _, o := range options {
				links[i].optionIDs = append(links[i].optionIDs, o.ID)
			}
			kept[q.ID] = true
		}

		if err := applyParentLinks(tx, links); err != nil {
			return err
		}

		// Payload is truth: drop persisted questions it no longer names.
		for _, q := range survey.Questions {
			if kept[q.ID] {
				continue
			}
			if err := deleteQuestionRows(tx, q.ID); err != nil {
				return err
			}
		}

		return nil
	})
}

// AddQuestion inserts one question with its children atomically.
func (r *SurveyRepository) AddQuestion(ctx context.Context, q *entity.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Model(&entity.Question{}).
			Where("survey_id = ?", q.SurveyID).
			Count(&seq).Error; err != nil {
			return err
		}
		q.Sequence = int(seq)
		options := q.Options
		constraints := q.Constraints
		q.Options = nil
		q.Constraints = nil
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		if err := insertChildren(tx, q.ID, options, constraints); err != nil {
			return err
		}
		q.Options = options
		q.Constraints = constraints
		return nil
	})
}

// UpdateQuestion updates one question and replaces its option and
// constraint sets atomically.
func (r *SurveyRepository) UpdateQuestion(ctx context.Context, q *entity.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Question{}).
			Where("id = ? AND survey_id = ?", q.ID, q.SurveyID).
			Updates(map[string]interface{}{
				"text":               q.Text,
				"question_type":      q.QuestionType,
				"is_required":        q.IsRequired,
				"default_value":      q.DefaultValue,
				"parent_question_id": q.ParentQuestionID,
				"parent_option_id":   q.ParentOptionID,
				"updated_at":         time.Now(),
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&entity.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&entity.QuestionConstraint{}).Error; err != nil {
			return err
		}
		return insertChildren(tx, q.ID, q.Options, q.Constraints)
	})
}

// DeleteQuestion removes one question with its answers, options and
// constraints atomically.
func (r *SurveyRepository) DeleteQuestion(ctx context.Context, surveyID, questionID int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.Question{}).
			Where("id = ? AND survey_id = ?", questionID, surveyID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return deleteQuestionRows(tx, questionID)
	})
}

// AddOption appends one option to a question.
func (r *SurveyRepository) AddOption(ctx context.Context, o *entity.Option) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.Option{}).
			Where("question_id = ?", o.QuestionID).
			Count(&count).Error; err != nil {
			return err
		}
		o.SortOrder = int(count)
		return tx.Create(o).Error
	})
}

// DeleteOption removes one option of a question.
func (r *SurveyRepository) DeleteOption(ctx context.Context, questionID, optionID int) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND question_id = ?", optionID, questionID).
		Delete(&entity.Option{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindQuestion loads one question of a survey with its children.
func (r *SurveyRepository) FindQuestion(ctx context.Context, surveyID, questionID int) (*entity.Question, error) {
	var q entity.Question
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Constraints").
		Where("id = ? AND survey_id = ? AND is_deleted = ?", questionID, surveyID, false).
		First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

// UpdateState moves the survey to a new lifecycle state.
func (r *SurveyRepository) UpdateState(ctx context.Context, id int, state string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Survey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":      state,
			"updated_at": time.Now(),
		}).Error
}

// Delete removes a survey and every dependent row in dependency order
// inside one transaction. The cascade is explicit rather than left to the
// storage engine.
func (r *SurveyRepository) Delete(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var questionIDs []int
		if err := tx.Model(&entity.Question{}).
			Where("survey_id = ?", id).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("survey_id = ?", id).Delete(&entity.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("survey_id = ?", id).Delete(&entity.SurveyAttempt{}).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&entity.QuestionConstraint{}).Error; err != nil {
				return err
			}
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&entity.Option{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("survey_id = ?", id).Delete(&entity.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM survey_editors WHERE survey_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Survey{}, id).Error
	})
}

// questionLink carries a payload branch reference through the insert pass
// so it can be rewritten against generated ids afterwards.
type questionLink struct {
	payloadID int
	realID    int
	parentRef *int
	optionPos *int
	optionIDs []int
}

// applyParentLinks rewrites payload branch references onto real row ids.
// Questions without a parent get their link columns cleared, so a replayed
// payload always converges to the same persisted links.
func applyParentLinks(tx *gorm.DB, links []questionLink) error {
	byLabel := make(map[int]*questionLink, len(links))
	for i := range links {
		if links[i].payloadID != 0 {
			byLabel[links[i].payloadID] = &links[i]
		}
	}
	for i := range links {
		l := &links[i]
		var parentID, optionID interface{}
		if l.parentRef != nil {
			parent, ok := byLabel[*l.parentRef]
			if !ok {
				return fmt.Errorf("question %d references unknown parent %d", l.payloadID, *l.parentRef)
			}
			parentID = parent.realID
			if l.optionPos != nil {
				pos := *l.optionPos
				if pos < 1 || pos > len(parent.optionIDs) {
					return fmt.Errorf("question %d references option position %d outside parent %d", l.payloadID, pos, *l.parentRef)
				}
				optionID = parent.optionIDs[pos-1]
			}
		}
		if err := tx.Model(&entity.Question{}).
			Where("id = ?", l.realID).
			Updates(map[string]interface{}{
				"parent_question_id": parentID,
				"parent_option_id":   optionID,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertChildren(tx *gorm.DB, questionID int, options []entity.Option, constraints []entity.QuestionConstraint) error {
	for i := range options {
		options[i].ID = 0
		options[i].QuestionID = questionID
		options[i].SortOrder = i
		if err := tx.Create(&options[i]).Error; err != nil {
			return err
		}
	}
	for i := range constraints {
		constraints[i].ID = 0
		constraints[i].QuestionID = questionID
		if err := tx.Create(&constraints[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func deleteQuestionRows(tx *gorm.DB, questionID int) error {
	if err := tx.Where("question_id = ?", questionID).Delete(&entity.Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("question_id = ?", questionID).Delete(&entity.QuestionConstraint{}).Error; err != nil {
		return err
	}
	if err := tx.Where("question_id = ?", questionID).Delete(&entity.Option{}).Error; err != nil {
		return err
	}
	return tx.Delete(&entity.Question{}, questionID).Error
}
