package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ravi1997/spars/internal/model/entity"
	"github.com/ravi1997/spars/internal/repository"
	"github.com/ravi1997/spars/internal/storage"
)

// Uploaded answer files must carry one of these extensions.
var allowedFileExtensions = map[string]bool{
	".jpg":  true,
	".png":  true,
	".pdf":  true,
	".docx": true,
}

// AnswerPayload is one answer row. A multiple-choice selection arrives as
// one row per selected option.
type AnswerPayload struct {
	QuestionID       int    `json:"question_id" binding:"required"`
	AnswerText       string `json:"answer_text"`
	AnswerFile       string `json:"answer_file"`
	SelectedOptionID *int   `json:"selected_option_id"`
}

// SubmitAnswersRequest is one atomic batch.
type SubmitAnswersRequest struct {
	Answers []AnswerPayload `json:"answers" binding:"required"`
}

// SubmitResult reports a recorded attempt.
type SubmitResult struct {
	AttemptID    int `json:"attempt_id"`
	AnswersCount int `json:"answers_count"`
}

// AnswerService records attempts and their answer batches, and scopes
// answer reads to the caller.
type AnswerService struct {
	answers *repository.AnswerRepository
	surveys *repository.SurveyRepository
	store   *storage.ObjectStore
	logger  *zap.Logger
}

func NewAnswerService(answers *repository.AnswerRepository, surveys *repository.SurveyRepository, store *storage.ObjectStore, logger *zap.Logger) *AnswerService {
	return &AnswerService{answers: answers, surveys: surveys, store: store, logger: logger}
}

// Submit records one attempt with its full answer batch. The whole batch
// is validated against the survey definition before any row is written;
// a single bad answer rejects the attempt entirely.
func (s *AnswerService) Submit(ctx context.Context, surveyID int, userID string, roles []string, req *SubmitAnswersRequest) (*SubmitResult, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := CanSubmit(survey.State, roles); err != nil {
		return nil, err
	}
	if len(req.Answers) == 0 {
		return nil, fmt.Errorf("%w: an attempt needs at least one answer", ErrValidation)
	}

	questions := make(map[int]*entity.Question, len(survey.Questions))
	for i := range survey.Questions {
		questions[survey.Questions[i].ID] = &survey.Questions[i]
	}

	rows := make([]entity.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %d does not belong to this survey", repository.ErrNotFound, a.QuestionID)
		}
		if err := validateAnswerRow(q, &a); err != nil {
			return nil, err
		}
		rows = append(rows, entity.Answer{
			SurveyID:         surveyID,
			QuestionID:       a.QuestionID,
			AnswerText:       a.AnswerText,
			AnswerFile:       a.AnswerFile,
			SelectedOptionID: a.SelectedOptionID,
		})
	}

	attempt := &entity.SurveyAttempt{
		SurveyID:    surveyID,
		UserID:      userID,
		AttemptedAt: time.Now(),
	}
	if err := s.answers.SubmitBatch(ctx, attempt, rows); err != nil {
		return nil, err
	}
	s.logger.Info("attempt recorded",
		zap.Int("survey_id", surveyID),
		zap.Int("attempt_id", attempt.ID),
		zap.String("user_id", userID),
		zap.Int("answers", len(rows)))
	return &SubmitResult{AttemptID: attempt.ID, AnswersCount: len(rows)}, nil
}

// List returns answers for a survey. Respondents see only their own; the
// unscoped listing needs an admin role.
func (s *AnswerService) List(ctx context.Context, surveyID int, userID string, roles []string, all bool) ([]entity.Answer, error) {
	if _, err := s.surveys.FindByID(ctx, surveyID); err != nil {
		return nil, err
	}
	if all {
		if !hasRole(roles, entity.RoleAdmin) && !hasRole(roles, entity.RoleSuperadmin) {
			return nil, fmt.Errorf("%w: listing all answers needs an admin role", ErrForbidden)
		}
		return s.answers.ListForSurvey(ctx, surveyID)
	}
	return s.answers.ListForUser(ctx, surveyID, userID)
}

// ListForAttempt returns every answer recorded under one attempt. The
// attempt must belong to the survey, and a respondent sees only their
// own attempts; admins see any.
func (s *AnswerService) ListForAttempt(ctx context.Context, surveyID, attemptID int, userID string, roles []string) ([]entity.Answer, error) {
	if _, err := s.surveys.FindByID(ctx, surveyID); err != nil {
		return nil, err
	}
	attempt, err := s.answers.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.SurveyID != surveyID {
		return nil, fmt.Errorf("%w: attempt %d does not belong to this survey", repository.ErrNotFound, attemptID)
	}
	if !hasRole(roles, entity.RoleAdmin) && !hasRole(roles, entity.RoleSuperadmin) && attempt.UserID != userID {
		return nil, fmt.Errorf("%w: this attempt belongs to another respondent", ErrForbidden)
	}
	return s.answers.ListForAttempt(ctx, attemptID)
}

// Get loads one answer, visible to its owner and to admins.
func (s *AnswerService) Get(ctx context.Context, surveyID, answerID int, userID string, roles []string) (*entity.Answer, error) {
	answer, err := s.answers.FindByID(ctx, surveyID, answerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, answer, userID, roles); err != nil {
		return nil, err
	}
	return answer, nil
}

// Update rewrites one answer's value. Owner only, and the survey must
// still be accepting submissions.
func (s *AnswerService) Update(ctx context.Context, surveyID, answerID int, userID string, roles []string, p *AnswerPayload) (*entity.Answer, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	answer, err := s.answers.FindByID(ctx, surveyID, answerID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.answers.FindAttempt(ctx, answer.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, fmt.Errorf("%w: only the respondent can change this answer", ErrForbidden)
	}
	if err := CanSubmit(survey.State, roles); err != nil {
		return nil, err
	}

	q, err := s.surveys.FindQuestion(ctx, surveyID, answer.QuestionID)
	if err != nil {
		return nil, err
	}
	row := AnswerPayload{
		QuestionID:       answer.QuestionID,
		AnswerText:       p.AnswerText,
		AnswerFile:       p.AnswerFile,
		SelectedOptionID: p.SelectedOptionID,
	}
	if err := validateAnswerRow(q, &row); err != nil {
		return nil, err
	}

	answer.AnswerText = p.AnswerText
	answer.AnswerFile = p.AnswerFile
	answer.SelectedOptionID = p.SelectedOptionID
	if err := s.answers.Update(ctx, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// Delete removes one answer. Owner or admin.
func (s *AnswerService) Delete(ctx context.Context, surveyID, answerID int, userID string, roles []string) error {
	answer, err := s.answers.FindByID(ctx, surveyID, answerID)
	if err != nil {
		return err
	}
	if err := s.checkOwnership(ctx, answer, userID, roles); err != nil {
		return err
	}
	return s.answers.Delete(ctx, surveyID, answerID)
}

// CountAttempts reports how many attempts a survey has recorded.
func (s *AnswerService) CountAttempts(ctx context.Context, surveyID int) (int64, error) {
	return s.answers.CountAttempts(ctx, surveyID)
}

// UploadFile stores one answer file and returns the object key to place
// in an answer row. The extension allowlist is enforced here, before any
// byte reaches the store.
func (s *AnswerService) UploadFile(ctx context.Context, surveyID int, filename string, size int64, contentType string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedFileExtensions[ext] {
		return "", fmt.Errorf("%w: file type %q is not allowed", ErrValidation, ext)
	}
	if s.store == nil {
		return "", fmt.Errorf("file storage is not configured")
	}
	key := fmt.Sprintf("answers/%d/%s%s", surveyID, uuid.New().String(), ext)
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// DownloadFile streams one stored answer file. Keys are scoped per
// survey; a key under another survey's prefix is rejected.
func (s *AnswerService) DownloadFile(ctx context.Context, surveyID int, key string) (io.ReadCloser, error) {
	if !strings.HasPrefix(key, fmt.Sprintf("answers/%d/", surveyID)) {
		return nil, fmt.Errorf("%w: file %q does not belong to this survey", ErrValidation, key)
	}
	if s.store == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}
	return s.store.Get(ctx, key)
}

func (s *AnswerService) checkOwnership(ctx context.Context, answer *entity.Answer, userID string, roles []string) error {
	if hasRole(roles, entity.RoleAdmin) || hasRole(roles, entity.RoleSuperadmin) {
		return nil
	}
	attempt, err := s.answers.FindAttempt(ctx, answer.AttemptID)
	if err != nil {
		return err
	}
	if attempt.UserID != userID {
		return fmt.Errorf("%w: this answer belongs to another respondent", ErrForbidden)
	}
	return nil
}

// validateAnswerRow checks one answer against its question's type,
// required flag and declared constraints.
func validateAnswerRow(q *entity.Question, a *AnswerPayload) error {
	switch {
	case q.HasOptions():
		if a.SelectedOptionID == nil {
			if q.IsRequired {
				return fmt.Errorf("%w: question %d needs a selected option", ErrValidation, q.ID)
			}
			return nil
		}
		for _, o := range q.Options {
			if o.ID == *a.SelectedOptionID {
				return nil
			}
		}
		return fmt.Errorf("%w: option %d does not belong to question %d", ErrValidation, *a.SelectedOptionID, q.ID)

	case q.IsFileType():
		if a.AnswerFile == "" {
			if q.IsRequired {
				return fmt.Errorf("%w: question %d needs an uploaded file", ErrValidation, q.ID)
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(a.AnswerFile))
		if !allowedFileExtensions[ext] {
			return fmt.Errorf("%w: file type %q is not allowed", ErrValidation, ext)
		}
		return nil

	default:
		if a.AnswerText == "" {
			if q.IsRequired {
				return fmt.Errorf("%w: question %d needs an answer", ErrValidation, q.ID)
			}
			return nil
		}
		if q.QuestionType == entity.QuestionTypeNumber {
			if _, err := strconv.ParseFloat(a.AnswerText, 64); err != nil {
				return fmt.Errorf("%w: question %d needs a numeric answer", ErrValidation, q.ID)
			}
		}
		for _, c := range q.Constraints {
			if err := checkConstraint(q.ID, a.AnswerText, c); err != nil {
				return err
			}
		}
		return nil
	}
}

func checkConstraint(questionID int, value string, c entity.QuestionConstraint) error {
	switch c.ConstraintType {
	case entity.ConstraintMaxLength:
		limit, err := strconv.Atoi(c.ConstraintValue)
		if err == nil && len(value) > limit {
			return fmt.Errorf("%w: answer to question %d exceeds max length %d", ErrValidation, questionID, limit)
		}
	case entity.ConstraintMinLength:
		limit, err := strconv.Atoi(c.ConstraintValue)
		if err == nil && len(value) < limit {
			return fmt.Errorf("%w: answer to question %d is shorter than min length %d", ErrValidation, questionID, limit)
		}
	case entity.ConstraintRegex:
		re, err := regexp.Compile(c.ConstraintValue)
		if err == nil && !re.MatchString(value) {
			return fmt.Errorf("%w: answer to question %d does not match the required pattern", ErrValidation, questionID)
		}
	case entity.ConstraintMinValue:
		limit, lerr := strconv.ParseFloat(c.ConstraintValue, 64)
		v, verr := strconv.ParseFloat(value, 64)
		if lerr == nil && verr == nil && v < limit {
			return fmt.Errorf("%w: answer to question %d is below the minimum %v", ErrValidation, questionID, limit)
		}
	case entity.ConstraintMaxValue:
		limit, lerr := strconv.ParseFloat(c.ConstraintValue, 64)
		v, verr := strconv.ParseFloat(value, 64)
		if lerr == nil && verr == nil && v > limit {
			return fmt.Errorf("%w: answer to question %d is above the maximum %v", ErrValidation, questionID, limit)
		}
	}
	return nil
}
