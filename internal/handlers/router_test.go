package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/config"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/events"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/services"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/utils"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/validator"
	"github.com/SAP-F-2025/exam-evaluation-service/pkg"
)

// fakeParser accepts tokens of the form "<casdoor type>:<user id>"
func fakeParser(token string) (*casdoorsdk.Claims, error) {
	kind, id, ok := strings.Cut(token, ":")
	if !ok || id == "" {
		return nil, errors.New("malformed token")
	}
	claims := &casdoorsdk.Claims{}
	claims.User.Id = id
	claims.User.Type = kind
	return claims, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := pkg.MigrateDatabase(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	slogLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log := utils.NewSlogLogger(slogLogger)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db})
	v := validator.New()

	sm := services.NewServiceManager(db, repo, slogLogger, v, events.NewMockEventPublisher(slogLogger), config.GradingConfig{MaxRetries: 3})
	if err := sm.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize services: %v", err)
	}

	router := gin.New()
	SetupMiddleware(router, log)
	NewHandlerManagerWithAuth(sm, v, log, NewAuthMiddlewareWithParser(fakeParser), repo.Ping).SetupRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, want, w.Body.String())
	}
}

const (
	adminToken   = "admin:admin-1"
	studentToken = "student:student-1"
)

func TestRouter_EvaluationLifecycle(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/exams", adminToken, models.ExamCreateRequest{
		Title: "Biology", Duration: 45, PassingMarks: 50,
	})
	expectStatus(t, w, http.StatusCreated)
	var exam models.Exam
	decode(t, w, &exam)

	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/questions", exam.ID), adminToken, models.QuestionCreateRequest{
		Type: models.QuestionTypeText, Text: "Describe osmosis", Marks: 20, OrderNumber: 1,
	})
	expectStatus(t, w, http.StatusCreated)
	var textQ models.Question
	decode(t, w, &textQ)

	key := "B"
	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/questions", exam.ID), adminToken, models.QuestionCreateRequest{
		Type: models.QuestionTypeMCQ, Text: "Pick", Options: []string{"A", "B"}, CorrectAnswer: &key, Marks: 80, OrderNumber: 2,
	})
	expectStatus(t, w, http.StatusCreated)
	var mcqQ models.Question
	decode(t, w, &mcqQ)

	w = do(t, router, http.MethodPut, fmt.Sprintf("/api/v1/exams/%d/status", exam.ID), adminToken, models.ExamStatusRequest{Status: models.ExamStatusActive})
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/attempts", exam.ID), studentToken, nil)
	expectStatus(t, w, http.StatusCreated)
	var session models.AttemptSession
	decode(t, w, &session)
	for _, q := range session.Questions {
		if q.CorrectAnswer != nil {
			t.Fatalf("session leaks answer key for question %d", q.ID)
		}
	}

	essay, choice := "Water crosses a membrane", "B"
	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/submit", session.Attempt.ID), studentToken, models.SubmitAttemptRequest{
		Answers: []models.AnswerSubmission{
			{QuestionID: textQ.ID, AnswerText: &essay},
			{QuestionID: mcqQ.ID, AnswerText: &choice},
		},
	})
	expectStatus(t, w, http.StatusOK)
	var submitted models.Attempt
	decode(t, w, &submitted)
	if submitted.Status != models.AttemptCompleted || submitted.TotalScore != 80 {
		t.Fatalf("submitted = %s/%v, want completed/80", submitted.Status, submitted.TotalScore)
	}

	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/attempts", exam.ID), adminToken, nil)
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d", session.Attempt.ID), adminToken, nil)
	expectStatus(t, w, http.StatusOK)
	var detail models.AttemptWithStats
	decode(t, w, &detail)
	if detail.Stats.ManualEvaluationNeeded != 1 {
		t.Fatalf("manual evaluation needed = %d, want 1", detail.Stats.ManualEvaluationNeeded)
	}
	var textAnswerID uint
	for _, a := range detail.Answers {
		if a.QuestionID == textQ.ID {
			textAnswerID = a.ID
		}
	}

	// Withheld until published
	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/me/attempts/%d/result", session.Attempt.ID), studentToken, nil)
	expectStatus(t, w, http.StatusForbidden)

	correct := true
	w = do(t, router, http.MethodPost, "/api/v1/evaluations", adminToken, models.EvaluateAnswerRequest{
		UserAnswerID: textAnswerID, IsCorrect: &correct, ScoreAwarded: 25,
	})
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, router, http.MethodPost, "/api/v1/evaluations", adminToken, models.EvaluateAnswerRequest{
		UserAnswerID: textAnswerID, IsCorrect: &correct, ScoreAwarded: 15,
	})
	expectStatus(t, w, http.StatusOK)
	var evaluated models.EvaluationResult
	decode(t, w, &evaluated)
	if evaluated.Attempt.TotalScore != 95 || evaluated.Attempt.Status != models.AttemptEvaluated {
		t.Fatalf("evaluated = %s/%v, want evaluated/95", evaluated.Attempt.Status, evaluated.Attempt.TotalScore)
	}

	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/results", exam.ID), adminToken, map[string]string{"action": "unpublish"})
	expectStatus(t, w, http.StatusBadRequest)

	w = do(t, router, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/results", exam.ID), adminToken, models.PublishResultsRequest{Action: models.PublishResultsAction})
	expectStatus(t, w, http.StatusOK)

	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/me/attempts/%d/result", session.Attempt.ID), studentToken, nil)
	expectStatus(t, w, http.StatusOK)
	var result models.StudentResult
	decode(t, w, &result)
	if !result.ResultVisible || result.TotalScore == nil || *result.TotalScore != 95 || result.Passed == nil || !*result.Passed {
		t.Errorf("student result = %+v, want visible 95 passed", result.StudentAttemptView)
	}

	w = do(t, router, http.MethodGet, "/api/v1/me/attempts", studentToken, nil)
	expectStatus(t, w, http.StatusOK)
}

func TestRouter_Authorization(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "missing token", method: http.MethodGet, path: "/api/v1/exams", want: http.StatusUnauthorized},
		{name: "malformed token", method: http.MethodGet, path: "/api/v1/exams", token: "garbage", want: http.StatusUnauthorized},
		{name: "student on admin route", method: http.MethodGet, path: "/api/v1/exams", token: studentToken, want: http.StatusForbidden},
		{name: "student evaluates", method: http.MethodPost, path: "/api/v1/evaluations", token: studentToken, want: http.StatusForbidden},
		{name: "admin on student route", method: http.MethodGet, path: "/api/v1/me/attempts", token: adminToken, want: http.StatusForbidden},
		{name: "super admin on admin route", method: http.MethodGet, path: "/api/v1/exams", token: "super_admin:root", want: http.StatusOK},
		{name: "bad id", method: http.MethodGet, path: "/api/v1/exams/abc", token: adminToken, want: http.StatusBadRequest},
		{name: "unknown exam", method: http.MethodGet, path: "/api/v1/exams/42", token: adminToken, want: http.StatusNotFound},
		{name: "unknown attempt", method: http.MethodPost, path: "/api/v1/attempts/42/recompute", token: adminToken, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.token, nil)
			expectStatus(t, w, tt.want)
		})
	}
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
}

func TestMapCasdoorRoleToUserRole(t *testing.T) {
	tests := []struct {
		in   string
		want models.UserRole
	}{
		{"admin", models.RoleAdmin},
		{"Administrator", models.RoleAdmin},
		{"super_admin", models.RoleSuperAdmin},
		{"normal-user", models.RoleStudent},
		{"", models.RoleStudent},
	}
	for _, tt := range tests {
		if got := mapCasdoorRoleToUserRole(tt.in); got != tt.want {
			t.Errorf("mapCasdoorRoleToUserRole(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
