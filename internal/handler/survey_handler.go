package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ravi1997/spars/internal/service"
)

type SurveyHandler struct {
	surveys *service.SurveyService
}

func NewSurveyHandler(surveys *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys}
}

// List returns every survey with its question tree.
// GET /api/v1/survey
func (h *SurveyHandler) List(c *gin.Context) {
	surveys, err := h.surveys.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, surveys)
}

// Get returns one survey. With selected_options the tree is pruned to the
// questions visible for those selections.
// GET /api/v1/survey/:id?selected_options=10,11
func (h *SurveyHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	selected, ok := queryIDs(c, "selected_options")
	if !ok {
		return
	}

	if selected != nil {
		survey, err := h.surveys.GetVisible(c.Request.Context(), id, selected)
		if err != nil {
			respondError(c, err)
			return
		}
		Success(c, survey)
		return
	}

	survey, err := h.surveys.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, survey)
}

// Create registers a new survey with its full definition.
// POST /api/v1/survey
func (h *SurveyHandler) Create(c *gin.Context) {
	var req service.CreateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "title and questions are required")
		return
	}
	survey, err := h.surveys.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, "Survey created successfully.", gin.H{
		"survey_id": survey.ID,
		"survey":    survey,
	})
}

// Update replaces the whole survey definition.
// PUT /api/v1/survey/:id
func (h *SurveyHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	var req service.UpdateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "title and questions are required")
		return
	}
	survey, err := h.surveys.ReplaceDefinition(c.Request.Context(), id, GetUserID(c), GetRoles(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Survey updated successfully.", survey)
}

type updateStateRequest struct {
	State string `json:"state" binding:"required"`
}

// UpdateState moves the survey forward through its lifecycle.
// PUT /api/v1/survey/:id/state
func (h *SurveyHandler) UpdateState(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	var req updateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "state is required")
		return
	}
	survey, err := h.surveys.UpdateState(c.Request.Context(), id, GetUserID(c), GetRoles(c), req.State)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Survey state updated successfully.", survey)
}

// Delete removes a survey with everything under it.
// DELETE /api/v1/survey/:id
func (h *SurveyHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	if err := h.surveys.Delete(c.Request.Context(), id, GetUserID(c), GetRoles(c)); err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Survey deleted successfully.", nil)
}

// AddQuestion appends one question to the survey.
// POST /api/v1/survey/:id/question
func (h *SurveyHandler) AddQuestion(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	var req service.QuestionPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid question payload")
		return
	}
	question, err := h.surveys.AddQuestion(c.Request.Context(), id, GetUserID(c), GetRoles(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, "Question added successfully.", question)
}

// UpdateQuestion rewrites one question.
// PUT /api/v1/survey/:id/question/:qid
func (h *SurveyHandler) UpdateQuestion(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	qid, ok := pathID(c, "qid", "invalid question id")
	if !ok {
		return
	}
	var req service.QuestionPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid question payload")
		return
	}
	question, err := h.surveys.UpdateQuestion(c.Request.Context(), id, qid, GetUserID(c), GetRoles(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Question updated successfully.", question)
}

// DeleteQuestion removes one question from the survey.
// DELETE /api/v1/survey/:id/question/:qid
func (h *SurveyHandler) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	qid, ok := pathID(c, "qid", "invalid question id")
	if !ok {
		return
	}
	if err := h.surveys.DeleteQuestion(c.Request.Context(), id, qid, GetUserID(c), GetRoles(c)); err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Question deleted successfully.", nil)
}

// AddOption appends one option to a choice question.
// POST /api/v1/survey/:id/question/:qid/option
func (h *SurveyHandler) AddOption(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	qid, ok := pathID(c, "qid", "invalid question id")
	if !ok {
		return
	}
	var req service.OptionPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "option text is required")
		return
	}
	question, err := h.surveys.AddOption(c.Request.Context(), id, qid, GetUserID(c), GetRoles(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, "Option added successfully.", question)
}

// DeleteOption removes one option from a question.
// DELETE /api/v1/survey/:id/question/:qid/option/:oid
func (h *SurveyHandler) DeleteOption(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	qid, ok := pathID(c, "qid", "invalid question id")
	if !ok {
		return
	}
	oid, ok := pathID(c, "oid", "invalid option id")
	if !ok {
		return
	}
	if err := h.surveys.DeleteOption(c.Request.Context(), id, qid, oid, GetUserID(c), GetRoles(c)); err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Option deleted successfully.", nil)
}

// pathID parses one integer path parameter, responding 400 on garbage.
func pathID(c *gin.Context, name, message string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		BadRequest(c, message)
		return 0, false
	}
	return id, true
}

// queryIDs parses a comma separated id list query parameter. A nil slice
// means the parameter was absent.
func queryIDs(c *gin.Context, name string) ([]int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			BadRequest(c, "invalid "+name)
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
