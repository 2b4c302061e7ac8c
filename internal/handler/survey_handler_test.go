package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ravi1997/spars/internal/middleware"
	"github.com/ravi1997/spars/internal/model/entity"
	"github.com/ravi1997/spars/internal/repository"
	"github.com/ravi1997/spars/internal/service"
	"github.com/ravi1997/spars/internal/testutil"
)

func setupSurveyTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	surveySvc := service.NewSurveyService(repos.Survey, zap.NewNop())
	answerSvc := service.NewAnswerService(repos.Answer, repos.Survey, nil, zap.NewNop())
	surveyHandler := NewSurveyHandler(surveySvc)
	answerHandler := NewAnswerHandler(answerSvc)

	router := testutil.SetupRouter()
	public := router.Group("/api/v1")
	public.GET("/survey", surveyHandler.List)
	public.GET("/survey/:id", surveyHandler.Get)

	authed := testutil.AuthGroup(router, "/api/v1")
	admin := authed.Group("", middleware.RequireRole(entity.RoleAdmin))
	admin.POST("/survey", surveyHandler.Create)
	admin.PUT("/survey/:id", surveyHandler.Update)
	admin.PUT("/survey/:id/state", surveyHandler.UpdateState)
	admin.DELETE("/survey/:id", surveyHandler.Delete)
	admin.POST("/survey/:id/question", surveyHandler.AddQuestion)
	admin.PUT("/survey/:id/question/:qid", surveyHandler.UpdateQuestion)
	admin.DELETE("/survey/:id/question/:qid", surveyHandler.DeleteQuestion)
	admin.POST("/survey/:id/question/:qid/option", surveyHandler.AddOption)
	admin.DELETE("/survey/:id/question/:qid/option/:oid", surveyHandler.DeleteOption)

	authed.POST("/survey/:id/answers", answerHandler.Submit)
	authed.GET("/survey/:id/answers", answerHandler.List)
	authed.GET("/survey/:id/answers/:aid", answerHandler.Get)
	authed.PUT("/survey/:id/answers/:aid", answerHandler.Update)
	authed.DELETE("/survey/:id/answers/:aid", answerHandler.Delete)

	return router, db
}

func adminToken(t *testing.T, db *gorm.DB, id, mobile string) string {
	t.Helper()
	testutil.SeedTestUser(t, db, id, mobile, entity.RoleAdmin)
	return testutil.GenerateTestToken(id, mobile, []string{entity.RoleAdmin})
}

// simpleSurveyPayload is one single-choice question with options X and Y.
func simpleSurveyPayload() map[string]interface{} {
	return map[string]interface{}{
		"title": "T",
		"questions": []map[string]interface{}{
			{
				"text":          "Q1",
				"question_type": "single-choice",
				"options":       []string{"X", "Y"},
			},
		},
	}
}

func createSurvey(t *testing.T, router *gin.Engine, token string, payload map[string]interface{}) int {
	t.Helper()
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/survey", payload, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create survey: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	id := int(data["survey_id"].(float64))
	if id <= 0 {
		t.Fatalf("create survey: missing survey_id in %v", data)
	}
	return id
}

func getSurvey(t *testing.T, router *gin.Engine, id int) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(router, http.MethodGet, fmt.Sprintf("/api/v1/survey/%d", id), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get survey %d: expected 200, got %d: %s", id, w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

func setState(t *testing.T, router *gin.Engine, token string, id int, state string) {
	t.Helper()
	w := testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d/state", id),
		map[string]string{"state": state}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("set state %s: expected 200, got %d: %s", state, w.Code, w.Body.String())
	}
}

func TestCreateSurvey(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())

	survey := getSurvey(t, router, id)
	if survey["title"] != "T" {
		t.Fatalf("expected title T, got %v", survey["title"])
	}
	if survey["state"] != "create" {
		t.Fatalf("expected state create, got %v", survey["state"])
	}
	questions := survey["questions"].([]interface{})
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	q := questions[0].(map[string]interface{})
	options := q["options"].([]interface{})
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(options))
	}
}

func TestCreateSurveyValidation(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/survey",
		map[string]interface{}{"title": "T", "questions": []map[string]interface{}{}}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty questions: expected 400, got %d", w.Code)
	}

	w = testutil.DoRequest(router, http.MethodPost, "/api/v1/survey",
		map[string]interface{}{
			"title": "T",
			"questions": []map[string]interface{}{
				{"text": "Q1", "question_type": "single-choice"},
			},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("choice without options: expected 400, got %d", w.Code)
	}

	w = testutil.DoRequest(router, http.MethodPost, "/api/v1/survey",
		map[string]interface{}{
			"title": "T",
			"questions": []map[string]interface{}{
				{"text": "Q1", "question_type": "telepathy"},
			},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: expected 400, got %d", w.Code)
	}
}

func TestCreateSurveyRequiresAdmin(t *testing.T) {
	router, db := setupSurveyTest(t)
	testutil.SeedTestUser(t, db, "user-1", "9000000002", entity.RoleNormal)
	token := testutil.GenerateTestToken("user-1", "9000000002", []string{entity.RoleNormal})

	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/survey", simpleSurveyPayload(), token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(router, http.MethodPost, "/api/v1/survey", simpleSurveyPayload(), "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
}

func TestBranchCycleRejected(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	payload := map[string]interface{}{
		"title": "cyclic",
		"questions": []map[string]interface{}{
			{"id": 1, "text": "A", "question_type": "single-choice", "options": []string{"a"}, "parent_question_id": 2, "parent_option_id": 1},
			{"id": 2, "text": "B", "question_type": "single-choice", "options": []string{"b"}, "parent_question_id": 1, "parent_option_id": 1},
		},
	}
	w := testutil.DoRequest(router, http.MethodPost, "/api/v1/survey", payload, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cycle: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReplaceDefinitionIdempotent(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, map[string]interface{}{
		"title": "original",
		"questions": []map[string]interface{}{
			{"text": "keep me", "question_type": "text"},
			{"text": "drop me", "question_type": "text"},
		},
	})

	survey := getSurvey(t, router, id)
	questions := survey["questions"].([]interface{})
	keptID := int(questions[0].(map[string]interface{})["id"].(float64))

	// Keep the first question under its persisted id, drop the second,
	// add a new one.
	update := map[string]interface{}{
		"title": "revised",
		"questions": []map[string]interface{}{
			{"id": keptID, "text": "kept and renamed", "question_type": "text"},
			{"text": "brand new", "question_type": "text"},
		},
	}

	w := testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d", id), update, token)
	if w.Code != http.StatusOK {
		t.Fatalf("first replace: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	first := getSurvey(t, router, id)
	firstQs := first["questions"].([]interface{})
	if len(firstQs) != 2 {
		t.Fatalf("after replace: expected 2 questions, got %d", len(firstQs))
	}
	if got := int(firstQs[0].(map[string]interface{})["id"].(float64)); got != keptID {
		t.Fatalf("kept question id changed: %d -> %d", keptID, got)
	}
	if first["title"] != "revised" {
		t.Fatalf("expected title revised, got %v", first["title"])
	}

	// Replay the same payload with the new question's id included: the
	// persisted state must not change.
	newID := int(firstQs[1].(map[string]interface{})["id"].(float64))
	update["questions"] = []map[string]interface{}{
		{"id": keptID, "text": "kept and renamed", "question_type": "text"},
		{"id": newID, "text": "brand new", "question_type": "text"},
	}
	w = testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d", id), update, token)
	if w.Code != http.StatusOK {
		t.Fatalf("second replace: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	second := getSurvey(t, router, id)
	secondQs := second["questions"].([]interface{})
	if len(secondQs) != 2 {
		t.Fatalf("after replay: expected 2 questions, got %d", len(secondQs))
	}
	for i := range secondQs {
		a := firstQs[i].(map[string]interface{})
		b := secondQs[i].(map[string]interface{})
		if a["id"] != b["id"] || a["text"] != b["text"] {
			t.Fatalf("replay diverged at %d: %v vs %v", i, a, b)
		}
	}
}

func TestEditLockedOutsideCreateState(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())
	setState(t, router, token, id, "testing")

	update := simpleSurveyPayload()
	w := testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d", id), update, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("edit in testing state: expected 403, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/survey/%d/question", id),
		map[string]interface{}{"text": "late", "question_type": "text"}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("add question in testing state: expected 403, got %d", w.Code)
	}
}

func TestEditByStrangerForbidden(t *testing.T) {
	router, db := setupSurveyTest(t)
	creator := adminToken(t, db, "admin-1", "9000000001")
	other := adminToken(t, db, "admin-2", "9000000002")

	id := createSurvey(t, router, creator, simpleSurveyPayload())

	w := testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d", id),
		simpleSurveyPayload(), other)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStateTransitionsForwardOnly(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())
	setState(t, router, token, id, "testing")
	setState(t, router, token, id, "release")

	w := testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d/state", id),
		map[string]string{"state": "testing"}, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("backward transition: expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(router, http.MethodPut, fmt.Sprintf("/api/v1/survey/%d/state", id),
		map[string]string{"state": "archived"}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown state: expected 400, got %d", w.Code)
	}

	setState(t, router, token, id, "close")
	if got := getSurvey(t, router, id)["state"]; got != "close" {
		t.Fatalf("expected state close, got %v", got)
	}
}

func TestAddQuestionWithBranch(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())
	survey := getSurvey(t, router, id)
	q := survey["questions"].([]interface{})[0].(map[string]interface{})
	parentID := int(q["id"].(float64))
	optionID := int(q["options"].([]interface{})[0].(map[string]interface{})["id"].(float64))

	w := testutil.DoRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/survey/%d/question", id),
		map[string]interface{}{
			"text":               "follow up",
			"question_type":      "text",
			"parent_question_id": parentID,
			"parent_option_id":   optionID,
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("attach: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// A trigger option from a foreign question must be rejected.
	w = testutil.DoRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/survey/%d/question", id),
		map[string]interface{}{
			"text":               "bad link",
			"question_type":      "text",
			"parent_question_id": parentID,
			"parent_option_id":   999999,
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("foreign option: expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOptionLifecycle(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())
	survey := getSurvey(t, router, id)
	q := survey["questions"].([]interface{})[0].(map[string]interface{})
	qid := int(q["id"].(float64))
	optX := int(q["options"].([]interface{})[0].(map[string]interface{})["id"].(float64))

	w := testutil.DoRequest(router, http.MethodPost,
		fmt.Sprintf("/api/v1/survey/%d/question/%d/option", id, qid),
		map[string]string{"text": "Z"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("add option: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	question := testutil.ParseResponse(w)["data"].(map[string]interface{})
	options := question["options"].([]interface{})
	if len(options) != 3 {
		t.Fatalf("expected 3 options after add, got %d", len(options))
	}
	last := options[2].(map[string]interface{})
	if last["text"] != "Z" {
		t.Fatalf("expected new option last, got %v", last["text"])
	}
	optZ := int(last["id"].(float64))

	// Hang a branch question off option X, making X a branch trigger.
	w = testutil.DoRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/survey/%d/question", id),
		map[string]interface{}{
			"text":               "follow up",
			"question_type":      "text",
			"parent_question_id": qid,
			"parent_option_id":   optX,
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("attach branch: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d/option/%d", id, qid, optX), nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("delete trigger option: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d/option/%d", id, qid, optZ), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete free option: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d/option/%d", id, qid, optZ), nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete gone option: expected 404, got %d", w.Code)
	}

	survey = getSurvey(t, router, id)
	q = survey["questions"].([]interface{})[0].(map[string]interface{})
	if got := len(q["options"].([]interface{})); got != 2 {
		t.Fatalf("expected 2 options left, got %d", got)
	}
}

func TestDeleteQuestionGuardsBranchParent(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())
	survey := getSurvey(t, router, id)
	q := survey["questions"].([]interface{})[0].(map[string]interface{})
	parentID := int(q["id"].(float64))
	optionID := int(q["options"].([]interface{})[0].(map[string]interface{})["id"].(float64))

	w := testutil.DoRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/survey/%d/question", id),
		map[string]interface{}{
			"text":               "follow up",
			"question_type":      "text",
			"parent_question_id": parentID,
			"parent_option_id":   optionID,
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("attach branch: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	childID := int(testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(float64))

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d", id, parentID), nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("delete branch parent: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d", id, childID), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete child: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d", id, parentID), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete parent after detach: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	survey = getSurvey(t, router, id)
	if got := len(survey["questions"].([]interface{})); got != 0 {
		t.Fatalf("expected no questions left, got %d", got)
	}

	w = testutil.DoRequest(router, http.MethodDelete,
		fmt.Sprintf("/api/v1/survey/%d/question/%d", id, parentID), nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete gone question: expected 404, got %d", w.Code)
	}
}

func TestVisibleTreePruning(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())
	survey := getSurvey(t, router, id)
	q := survey["questions"].([]interface{})[0].(map[string]interface{})
	parentID := int(q["id"].(float64))
	options := q["options"].([]interface{})
	optX := int(options[0].(map[string]interface{})["id"].(float64))
	optY := int(options[1].(map[string]interface{})["id"].(float64))

	for _, opt := range []int{optX, optY} {
		w := testutil.DoRequest(router, http.MethodPost, fmt.Sprintf("/api/v1/survey/%d/question", id),
			map[string]interface{}{
				"text":               fmt.Sprintf("branch of %d", opt),
				"question_type":      "text",
				"parent_question_id": parentID,
				"parent_option_id":   opt,
			}, token)
		if w.Code != http.StatusCreated {
			t.Fatalf("attach branch: expected 201, got %d", w.Code)
		}
	}

	w := testutil.DoRequest(router, http.MethodGet,
		fmt.Sprintf("/api/v1/survey/%d?selected_options=%d", id, optX), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("visible tree: expected 200, got %d", w.Code)
	}
	pruned := testutil.ParseResponse(w)["data"].(map[string]interface{})
	qs := pruned["questions"].([]interface{})
	if len(qs) != 2 {
		t.Fatalf("expected root plus one branch, got %d questions", len(qs))
	}
}

func TestDeleteSurveyCascades(t *testing.T) {
	router, db := setupSurveyTest(t)
	token := adminToken(t, db, "admin-1", "9000000001")

	id := createSurvey(t, router, token, simpleSurveyPayload())

	w := testutil.DoRequest(router, http.MethodDelete, fmt.Sprintf("/api/v1/survey/%d", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodGet, fmt.Sprintf("/api/v1/survey/%d", id), nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("after delete: expected 404, got %d", w.Code)
	}

	var questions int64
	db.Model(&entity.Question{}).Where("survey_id = ?", id).Count(&questions)
	if questions != 0 {
		t.Fatalf("expected 0 questions after delete, got %d", questions)
	}
	var options int64
	db.Model(&entity.Option{}).Count(&options)
	if options != 0 {
		t.Fatalf("expected 0 options after delete, got %d", options)
	}
}
