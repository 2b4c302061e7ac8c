package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/ravi1997/spars/internal/model/entity"
	"github.com/ravi1997/spars/internal/repository"
)

// ConstraintPayload declares one answer constraint on a question.
type ConstraintPayload struct {
	Type  string `json:"type" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// QuestionPayload is one question within a survey definition. In create
// and full-replace payloads the id field is a label other questions may
// name in parent_question_id, and parent_option_id is the 1-based position
// of the trigger option. The single-question endpoints take persisted ids
// instead.
type QuestionPayload struct {
	ID               int                 `json:"id"`
	Text             string              `json:"text"`
	QuestionType     string              `json:"question_type"`
	IsRequired       *bool               `json:"is_required"`
	DefaultValue     string              `json:"default_value"`
	Options          []string            `json:"options"`
	Constraints      []ConstraintPayload `json:"constraints"`
	ParentQuestionID *int                `json:"parent_question_id"`
	ParentOptionID   *int                `json:"parent_option_id"`
}

// CreateSurveyRequest carries a full survey definition.
type CreateSurveyRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Questions   []QuestionPayload `json:"questions" binding:"required"`
}

// UpdateSurveyRequest replaces the whole definition. Questions carrying a
// persisted id are updated in place, the rest are inserted, and persisted
// questions absent from the payload are removed.
type UpdateSurveyRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Questions   []QuestionPayload `json:"questions" binding:"required"`
}

// SurveyService owns definition lifecycle: create, read, reconcile,
// state transitions and deletion.
type SurveyService struct {
	surveys *repository.SurveyRepository
	logger  *zap.Logger
}

func NewSurveyService(surveys *repository.SurveyRepository, logger *zap.Logger) *SurveyService {
	return &SurveyService{surveys: surveys, logger: logger}
}

// Create persists a new survey in the create state with the caller as
// creator. The definition must be complete and its branch links sound
// before any row is written.
func (s *SurveyService) Create(ctx context.Context, userID string, req *CreateSurveyRequest) (*entity.Survey, error) {
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("%w: a survey needs at least one question", ErrValidation)
	}
	if err := validateQuestionPayloads(req.Questions); err != nil {
		return nil, err
	}

	survey := &entity.Survey{
		Title:           req.Title,
		Description:     req.Description,
		State:           entity.SurveyStateCreate,
		CreatedByUserID: userID,
	}
	if err := s.surveys.Create(ctx, survey, payloadsToEntities(req.Questions)); err != nil {
		return nil, err
	}
	s.logger.Info("survey created",
		zap.Int("survey_id", survey.ID),
		zap.String("user_id", userID),
		zap.Int("questions", len(req.Questions)))
	return s.surveys.FindByID(ctx, survey.ID)
}

// Get loads one survey with its full question tree.
func (s *SurveyService) Get(ctx context.Context, id int) (*entity.Survey, error) {
	return s.surveys.FindByID(ctx, id)
}

// GetVisible loads one survey and prunes its tree to the questions
// visible for the given option selections.
func (s *SurveyService) GetVisible(ctx context.Context, id int, selectedOptionIDs []int) (*entity.Survey, error) {
	survey, err := s.surveys.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	survey.Questions = ResolveVisibleTree(survey, selectedOptionIDs)
	return survey, nil
}

// List returns every survey.
func (s *SurveyService) List(ctx context.Context) ([]entity.Survey, error) {
	return s.surveys.List(ctx)
}

// ReplaceDefinition reconciles the survey against a full replacement
// payload. Gated on edit rights, validated as a whole, applied
// atomically. Replaying the same payload converges to the same state.
func (s *SurveyService) ReplaceDefinition(ctx context.Context, surveyID int, userID string, roles []string, req *UpdateSurveyRequest) (*entity.Survey, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(survey, userID, roles); err != nil {
		return nil, err
	}
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("%w: a survey needs at least one question", ErrValidation)
	}
	if err := validateQuestionPayloads(req.Questions); err != nil {
		return nil, err
	}

	survey.Title = req.Title
	survey.Description = req.Description
	if err := s.surveys.ReplaceDefinition(ctx, survey, payloadsToEntities(req.Questions)); err != nil {
		return nil, err
	}
	s.logger.Info("survey definition replaced",
		zap.Int("survey_id", surveyID),
		zap.String("user_id", userID))
	return s.surveys.FindByID(ctx, surveyID)
}

// UpdateState moves the survey forward through its lifecycle. Only the
// creator may move it; SUPERADMIN overrides.
func (s *SurveyService) UpdateState(ctx context.Context, surveyID int, userID string, roles []string, newState string) (*entity.Survey, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if !hasRole(roles, entity.RoleSuperadmin) && survey.CreatedByUserID != userID {
		return nil, fmt.Errorf("%w: only the creator can change the survey state", ErrForbidden)
	}
	if err := CanTransition(survey.State, newState); err != nil {
		return nil, err
	}
	if err := s.surveys.UpdateState(ctx, surveyID, newState); err != nil {
		return nil, err
	}
	s.logger.Info("survey state changed",
		zap.Int("survey_id", surveyID),
		zap.String("from", survey.State),
		zap.String("to", newState))
	survey.State = newState
	return survey, nil
}

// Delete removes a survey with all its questions, attempts and answers.
// Creator only; SUPERADMIN overrides.
func (s *SurveyService) Delete(ctx context.Context, surveyID int, userID string, roles []string) error {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return err
	}
	if !hasRole(roles, entity.RoleSuperadmin) && survey.CreatedByUserID != userID {
		return fmt.Errorf("%w: only the creator can delete this survey", ErrForbidden)
	}
	return s.surveys.Delete(ctx, surveyID)
}

// AddQuestion appends one question to a survey still in the create state.
// Branch references here are persisted ids.
func (s *SurveyService) AddQuestion(ctx context.Context, surveyID int, userID string, roles []string, p *QuestionPayload) (*entity.Question, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(survey, userID, roles); err != nil {
		return nil, err
	}
	if err := validateQuestionFields(p); err != nil {
		return nil, err
	}
	if err := ValidateAttach(survey, 0, p.ParentQuestionID, p.ParentOptionID); err != nil {
		return nil, err
	}

	q := payloadToEntity(p)
	q.ID = 0
	q.SurveyID = surveyID
	q.ParentQuestionID = p.ParentQuestionID
	q.ParentOptionID = p.ParentOptionID
	if err := s.surveys.AddQuestion(ctx, &q); err != nil {
		return nil, err
	}
	return s.surveys.FindQuestion(ctx, surveyID, q.ID)
}

// UpdateQuestion rewrites one question and replaces its option and
// constraint sets. Branch references here are persisted ids.
func (s *SurveyService) UpdateQuestion(ctx context.Context, surveyID, questionID int, userID string, roles []string, p *QuestionPayload) (*entity.Question, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(survey, userID, roles); err != nil {
		return nil, err
	}
	if _, err := s.surveys.FindQuestion(ctx, surveyID, questionID); err != nil {
		return nil, err
	}
	if err := validateQuestionFields(p); err != nil {
		return nil, err
	}
	if err := ValidateAttach(survey, questionID, p.ParentQuestionID, p.ParentOptionID); err != nil {
		return nil, err
	}

	q := payloadToEntity(p)
	q.ID = questionID
	q.SurveyID = surveyID
	q.ParentQuestionID = p.ParentQuestionID
	q.ParentOptionID = p.ParentOptionID
	if err := s.surveys.UpdateQuestion(ctx, &q); err != nil {
		return nil, err
	}
	return s.surveys.FindQuestion(ctx, surveyID, questionID)
}

// DeleteQuestion removes one question. A question other questions branch
// from must have its children detached first, so no parent link dangles.
func (s *SurveyService) DeleteQuestion(ctx context.Context, surveyID, questionID int, userID string, roles []string) error {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return err
	}
	if err := CanEdit(survey, userID, roles); err != nil {
		return err
	}
	if _, err := s.surveys.FindQuestion(ctx, surveyID, questionID); err != nil {
		return err
	}
	for _, q := range survey.Questions {
		if q.ParentQuestionID != nil && *q.ParentQuestionID == questionID {
			return fmt.Errorf("%w: question %d is the branch parent of question %d; detach the child first", ErrValidation, questionID, q.ID)
		}
	}
	return s.surveys.DeleteQuestion(ctx, surveyID, questionID)
}

// OptionPayload is one option for the single-option endpoints.
type OptionPayload struct {
	Text string `json:"text" binding:"required"`
}

// AddOption appends one option to a choice question.
func (s *SurveyService) AddOption(ctx context.Context, surveyID, questionID int, userID string, roles []string, p *OptionPayload) (*entity.Question, error) {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := CanEdit(survey, userID, roles); err != nil {
		return nil, err
	}
	q, err := s.surveys.FindQuestion(ctx, surveyID, questionID)
	if err != nil {
		return nil, err
	}
	if !q.HasOptions() {
		return nil, fmt.Errorf("%w: question %d does not take options", ErrValidation, questionID)
	}
	if p.Text == "" {
		return nil, fmt.Errorf("%w: option text cannot be empty", ErrValidation)
	}
	option := &entity.Option{QuestionID: questionID, Text: p.Text}
	if err := s.surveys.AddOption(ctx, option); err != nil {
		return nil, err
	}
	return s.surveys.FindQuestion(ctx, surveyID, questionID)
}

// DeleteOption removes one option. An option that triggers a branch must
// have the branch detached first.
func (s *SurveyService) DeleteOption(ctx context.Context, surveyID, questionID, optionID int, userID string, roles []string) error {
	survey, err := s.surveys.FindByID(ctx, surveyID)
	if err != nil {
		return err
	}
	if err := CanEdit(survey, userID, roles); err != nil {
		return err
	}
	q, err := s.surveys.FindQuestion(ctx, surveyID, questionID)
	if err != nil {
		return err
	}
	found := false
	for _, o := range q.Options {
		if o.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: option %d does not belong to question %d", repository.ErrNotFound, optionID, questionID)
	}
	for _, child := range survey.Questions {
		if child.ParentOptionID != nil && *child.ParentOptionID == optionID {
			return fmt.Errorf("%w: option %d is the branch trigger of question %d; detach it first", ErrValidation, optionID, child.ID)
		}
	}
	return s.surveys.DeleteOption(ctx, questionID, optionID)
}

var knownQuestionTypes = map[string]bool{
	entity.QuestionTypeText:           true,
	entity.QuestionTypeNumber:         true,
	entity.QuestionTypeDate:           true,
	entity.QuestionTypeSingleChoice:   true,
	entity.QuestionTypeMultipleChoice: true,
	entity.QuestionTypeFile:           true,
	entity.QuestionTypeImage:          true,
}

// validateQuestionFields checks one question's own fields, ignoring its
// branch link.
func validateQuestionFields(p *QuestionPayload) error {
	if p.Text == "" {
		return fmt.Errorf("%w: question text is required", ErrValidation)
	}
	if !knownQuestionTypes[p.QuestionType] {
		return fmt.Errorf("%w: unknown question type %q", ErrValidation, p.QuestionType)
	}
	isChoice := p.QuestionType == entity.QuestionTypeSingleChoice || p.QuestionType == entity.QuestionTypeMultipleChoice
	if isChoice && len(p.Options) == 0 {
		return fmt.Errorf("%w: a choice question needs at least one option", ErrValidation)
	}
	if !isChoice && len(p.Options) > 0 {
		return fmt.Errorf("%w: options are only allowed on choice questions", ErrValidation)
	}
	for _, o := range p.Options {
		if o == "" {
			return fmt.Errorf("%w: option text cannot be empty", ErrValidation)
		}
	}
	for _, c := range p.Constraints {
		if err := validateConstraint(c); err != nil {
			return err
		}
	}
	return nil
}

func validateConstraint(c ConstraintPayload) error {
	switch c.Type {
	case entity.ConstraintMaxLength, entity.ConstraintMinLength:
		if _, err := strconv.Atoi(c.Value); err != nil {
			return fmt.Errorf("%w: %s constraint needs an integer value", ErrValidation, c.Type)
		}
	case entity.ConstraintMinValue, entity.ConstraintMaxValue:
		if _, err := strconv.ParseFloat(c.Value, 64); err != nil {
			return fmt.Errorf("%w: %s constraint needs a numeric value", ErrValidation, c.Type)
		}
	case entity.ConstraintRegex:
		if _, err := regexp.Compile(c.Value); err != nil {
			return fmt.Errorf("%w: invalid regex constraint: %v", ErrValidation, err)
		}
	default:
		return fmt.Errorf("%w: unknown constraint type %q", ErrValidation, c.Type)
	}
	return nil
}

// validateQuestionPayloads checks a whole definition payload, fields and
// branch links together.
func validateQuestionPayloads(payloads []QuestionPayload) error {
	nodes := make([]branchNode, len(payloads))
	for i := range payloads {
		p := &payloads[i]
		if err := validateQuestionFields(p); err != nil {
			return err
		}
		nodes[i] = branchNode{
			Label:       p.ID,
			ParentLabel: p.ParentQuestionID,
			OptionPos:   p.ParentOptionID,
			OptionCount: len(p.Options),
			IsChoice:    p.QuestionType == entity.QuestionTypeSingleChoice || p.QuestionType == entity.QuestionTypeMultipleChoice,
		}
	}
	return validatePayloadLinks(nodes)
}

func payloadToEntity(p *QuestionPayload) entity.Question {
	q := entity.Question{
		ID:               p.ID,
		Text:             p.Text,
		QuestionType:     p.QuestionType,
		IsRequired:       true,
		DefaultValue:     p.DefaultValue,
		ParentQuestionID: p.ParentQuestionID,
		ParentOptionID:   p.ParentOptionID,
	}
	if p.IsRequired != nil {
		q.IsRequired = *p.IsRequired
	}
	for _, text := range p.Options {
		q.Options = append(q.Options, entity.Option{Text: text})
	}
	for _, c := range p.Constraints {
		q.Constraints = append(q.Constraints, entity.QuestionConstraint{
			ConstraintType:  c.Type,
			ConstraintValue: c.Value,
		})
	}
	return q
}

func payloadsToEntities(payloads []QuestionPayload) []entity.Question {
	out := make([]entity.Question, len(payloads))
	for i := range payloads {
		out[i] = payloadToEntity(&payloads[i])
	}
	return out
}
