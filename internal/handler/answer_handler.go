package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ravi1997/spars/internal/service"
)

type AnswerHandler struct {
	answers *service.AnswerService
}

func NewAnswerHandler(answers *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{answers: answers}
}

// Submit records one attempt with its answer batch.
// POST /api/v1/survey/:id/answers
func (h *AnswerHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	var req service.SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "answers are required")
		return
	}
	result, err := h.answers.Submit(c.Request.Context(), id, GetUserID(c), GetRoles(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, "Answers submitted successfully.", result)
}

// List returns the caller's answers for a survey. With attempt_id only
// that attempt's batch is returned. With all=true an admin sees every
// respondent's answers along with the attempt count.
// GET /api/v1/survey/:id/answers?all=true
// GET /api/v1/survey/:id/answers?attempt_id=3
func (h *AnswerHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	if raw := c.Query("attempt_id"); raw != "" {
		attemptID, err := strconv.Atoi(raw)
		if err != nil || attemptID <= 0 {
			BadRequest(c, "invalid attempt_id")
			return
		}
		answers, err := h.answers.ListForAttempt(c.Request.Context(), id, attemptID, GetUserID(c), GetRoles(c))
		if err != nil {
			respondError(c, err)
			return
		}
		Success(c, answers)
		return
	}

	all := c.Query("all") == "true"
	answers, err := h.answers.List(c.Request.Context(), id, GetUserID(c), GetRoles(c), all)
	if err != nil {
		respondError(c, err)
		return
	}
	if all {
		count, err := h.answers.CountAttempts(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		Success(c, gin.H{"answers": answers, "attempts_count": count})
		return
	}
	Success(c, answers)
}

// Get returns one answer.
// GET /api/v1/survey/:id/answers/:aid
func (h *AnswerHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	aid, ok := pathID(c, "aid", "invalid answer id")
	if !ok {
		return
	}
	answer, err := h.answers.Get(c.Request.Context(), id, aid, GetUserID(c), GetRoles(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, answer)
}

// Update rewrites one answer's value.
// PUT /api/v1/survey/:id/answers/:aid
func (h *AnswerHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	aid, ok := pathID(c, "aid", "invalid answer id")
	if !ok {
		return
	}
	var req service.AnswerPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid answer payload")
		return
	}
	answer, err := h.answers.Update(c.Request.Context(), id, aid, GetUserID(c), GetRoles(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Answer updated successfully.", answer)
}

// Delete removes one answer.
// DELETE /api/v1/survey/:id/answers/:aid
func (h *AnswerHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	aid, ok := pathID(c, "aid", "invalid answer id")
	if !ok {
		return
	}
	if err := h.answers.Delete(c.Request.Context(), id, aid, GetUserID(c), GetRoles(c)); err != nil {
		respondError(c, err)
		return
	}
	SuccessMessage(c, "Answer deleted successfully.", nil)
}

// Upload stores one answer file and returns its object key.
// POST /api/v1/survey/:id/answers/upload
func (h *AnswerHandler) Upload(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "could not read uploaded file")
		return
	}
	defer file.Close()

	key, err := h.answers.UploadFile(c.Request.Context(), id,
		fileHeader.Filename, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, "File uploaded successfully.", gin.H{"file": key})
}

// Download streams one stored answer file.
// GET /api/v1/survey/:id/answers/download?file=answers/1/abc.pdf
func (h *AnswerHandler) Download(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid survey id")
	if !ok {
		return
	}
	key := c.Query("file")
	if key == "" {
		BadRequest(c, "file is required")
		return
	}
	object, err := h.answers.DownloadFile(c.Request.Context(), id, key)
	if err != nil {
		respondError(c, err)
		return
	}
	defer object.Close()
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, object)
}
