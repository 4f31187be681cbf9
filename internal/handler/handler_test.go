package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/careerquest/internal/analysis"
	"github.com/pavelanni/careerquest/internal/i18n"
	"github.com/pavelanni/careerquest/internal/model"
	"github.com/pavelanni/careerquest/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type stubTasks struct {
	grades []model.Grade
}

func (s *stubTasks) Tasks(_ context.Context, grade model.Grade) []model.Task {
	s.grades = append(s.grades, grade)
	return []model.Task{
		{ID: "task1", Title: "Logical Reasoning", Description: "riddle"},
		{ID: "task2", Title: "Creative Thinking", Description: "invent", ImageURL: "https://placehold.co/x"},
	}
}

type stubAnalyzer struct {
	report model.Report
	err    error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string) (model.Report, error) {
	return s.report, s.err
}

type env struct {
	store    *store.FileStore
	tasks    *stubTasks
	analyzer *stubAnalyzer
	router   http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	e := &env{store: st, tasks: &stubTasks{}, analyzer: &stubAnalyzer{}}
	h, err := New(st, e.tasks, e.analyzer)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(i18n.Middleware())
	h.Routes(r)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rr)["error"]
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, &stubTasks{}, &stubAnalyzer{})
	assert.Error(t, err)
}

func TestIndexAndHealth(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "CareerQuest Oracle API is running!", decode[map[string]string](t, rr)["message"])

	rr = e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rr)["status"])
}

func TestSessionCreateIsIdempotent(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/user/session", `{"name": "Ada", "grade": 10}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := rr.Body.String()
	assert.JSONEq(t, `{"name":"Ada","grade":10,"answers":[],"report_history":[]}`, first)

	rr = e.do(t, http.MethodPost, "/user/session", `{"name": "Ada", "grade": "11"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, first, rr.Body.String())
}

func TestSessionGradeAsString(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/user/session", `{"name": "Bo", "grade": "4"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[model.UserRecord](t, rr)
	assert.Equal(t, model.Grade(4), rec.Grade)
}

func TestSessionGradeAsFloat(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/user/session", `{"name": "Cy", "grade": 10.0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decode[model.UserRecord](t, rr)
	assert.Equal(t, model.Grade(10), rec.Grade)
}

func TestSessionValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing grade", `{"name": "Ada"}`, "Name and grade are required."},
		{"missing name", `{"grade": 5}`, "Name and grade are required."},
		{"blank name", `{"name": "  ", "grade": 5}`, "Name and grade are required."},
		{"zero grade", `{"name": "Ada", "grade": 0}`, "Name and grade are required."},
		{"non-numeric grade", `{"name": "Ada", "grade": "ten"}`, "Request body must be a valid JSON object."},
		{"not json", `name=Ada`, "Request body must be a valid JSON object."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			rr := e.do(t, http.MethodPost, "/user/session", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, errorMessage(t, rr))
		})
	}
}

func TestDashboard(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/user/dashboard", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodGet, "/user/dashboard?name=Nobody", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found.", errorMessage(t, rr))

	rec := model.NewUserRecord("Ada", 10)
	rec.ReportHistory = append(rec.ReportHistory,
		model.Report{"career_cluster": "Engineering"},
		model.Report{"skill_superpower": "Curiosity"},
	)
	require.NoError(t, e.store.Save("Ada", rec))

	rr = e.do(t, http.MethodGet, "/user/dashboard?name=ada", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"quests_completed": 2, "skill_timeline": ["Engineering", "Curiosity"]}`, rr.Body.String())
}

func TestTasks(t *testing.T) {
	e := newEnv(t)

	for _, q := range []string{"", "?grade=", "?grade=abc", "?grade=-3", "?grade=4.5", "?grade=99999999999999999999"} {
		rr := e.do(t, http.MethodGet, "/quest/tasks"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		assert.Equal(t, "A valid grade parameter is required.", errorMessage(t, rr))
	}
	assert.Empty(t, e.tasks.grades)

	rr := e.do(t, http.MethodGet, "/quest/tasks?grade=7", "")
	require.Equal(t, http.StatusOK, rr.Code)
	tasks := decode[[]model.Task](t, rr)
	require.Len(t, tasks, 2)
	assert.Equal(t, "task1", tasks[0].ID)
	assert.Equal(t, []model.Grade{7}, e.tasks.grades)
	assert.NotContains(t, rr.Body.String(), `"image_url":""`)
}

func TestAnswers(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodPost, "/user/answers", `{"name": "Ada"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Name and answers are required.", errorMessage(t, rr))

	rr = e.do(t, http.MethodPost, "/user/answers", `{"name": "Ghost", "answers": []}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, e.store.Save("Ada", model.NewUserRecord("Ada", 10)))

	rr = e.do(t, http.MethodPost, "/user/answers", `{"name": "Ada", "answers": [{"task": "task1", "answer": "his son"}, "plain"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Answers saved successfully.", decode[map[string]string](t, rr)["message"])

	rec, err := e.store.Load("Ada")
	require.NoError(t, err)
	require.Len(t, rec.Answers, 2)
	assert.JSONEq(t, `{"task": "task1", "answer": "his son"}`, string(rec.Answers[0]))

	rr = e.do(t, http.MethodPost, "/user/answers", `{"name": "Ada", "answers": []}`)
	require.Equal(t, http.StatusOK, rr.Code)
	rec, _ = e.store.Load("Ada")
	assert.Empty(t, rec.Answers)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", fmt.Errorf("%w: %q", analysis.ErrUserNotFound, "x"), http.StatusNotFound, "User data is incomplete or not found."},
		{"prompt", analysis.ErrPromptUnavailable, http.StatusInternalServerError, "The Oracle's analysis prompt could not be loaded."},
		{"malformed", analysis.ErrAnalysisMalformed, http.StatusInternalServerError, "The Oracle provided a response in an unexpected format."},
		{"provider", fmt.Errorf("%w: %w", analysis.ErrAnalysisUnavailable, errors.New("secret upstream detail")), http.StatusInternalServerError, "The Oracle is currently busy. Please try again later."},
		{"other", errors.New("boom"), http.StatusInternalServerError, "Something went wrong. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.analyzer.err = tt.err

			rr := e.do(t, http.MethodPost, "/quest/analyze", `{"name": "Ada"}`)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantMsg, errorMessage(t, rr))
			assert.NotContains(t, rr.Body.String(), "secret upstream detail")
		})
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	e := newEnv(t)
	e.analyzer.report = model.Report{"feedback": "Write a bit more next time."}

	rr := e.do(t, http.MethodPost, "/quest/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Name is required.", errorMessage(t, rr))

	rr = e.do(t, http.MethodPost, "/quest/analyze", `{"name": "Ada"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"feedback": "Write a bit more next time."}`, rr.Body.String())
}

func TestErrorsAreLocalized(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/user/dashboard?name=Nobody", "", "Accept-Language", "ru-RU,ru;q=0.9")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	msg := errorMessage(t, rr)
	assert.NotEmpty(t, msg)
	assert.NotEqual(t, "User not found.", msg)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
