package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavelanni/careerquest/internal/analysis"
	"github.com/pavelanni/careerquest/internal/i18n"
	"github.com/pavelanni/careerquest/internal/model"
	"github.com/pavelanni/careerquest/internal/store"
)

// maxBodyBytes caps request bodies; answer sets are small.
const maxBodyBytes = 1 << 20

// TaskGenerator produces the quest tasks for a grade.
type TaskGenerator interface {
	Tasks(ctx context.Context, grade model.Grade) []model.Task
}

// Analyzer produces a report for a stored user.
type Analyzer interface {
	Analyze(ctx context.Context, username string) (model.Report, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    store.Store
	tasks    TaskGenerator
	analyzer Analyzer
}

// New creates a new Handler.
func New(s store.Store, tasks TaskGenerator, analyzer Analyzer) (*Handler, error) {
	if s == nil || tasks == nil || analyzer == nil {
		return nil, errors.New("handler: store, task generator and analyzer are required")
	}
	return &Handler{store: s, tasks: tasks, analyzer: analyzer}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/health", h.handleHealth)
	r.Post("/user/session", h.handleSession)
	r.Get("/user/dashboard", h.handleDashboard)
	r.Get("/quest/tasks", h.handleTasks)
	r.Post("/user/answers", h.handleAnswers)
	r.Post("/quest/analyze", h.handleAnalyze)
	r.Handle("/metrics", promhttp.Handler())
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": i18n.T(r.Context(), "APIRunning")})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": i18n.T(r.Context(), "Healthy"),
	})
}

type sessionRequest struct {
	Name  string       `json:"name"`
	Grade *model.Grade `json:"grade"`
}

// handleSession returns the stored record for name, creating it on first
// use. An existing record is returned unchanged, even if the grade differs.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Grade == nil || *req.Grade == 0 {
		writeError(w, r, http.StatusBadRequest, "ErrNameGradeRequired")
		return
	}

	rec := h.load(req.Name)
	if rec == nil {
		slog.Info("creating user record", "user", req.Name, "grade", int(*req.Grade))
		rec = model.NewUserRecord(req.Name, *req.Grade)
		h.save(req.Name, rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "ErrNameRequired")
		return
	}
	rec := h.load(name)
	if rec == nil {
		writeError(w, r, http.StatusNotFound, "ErrUserNotFound")
		return
	}
	writeJSON(w, http.StatusOK, model.BuildDashboard(rec))
}

func (h *Handler) handleTasks(w http.ResponseWriter, r *http.Request) {
	grade, ok := parseGrade(r.URL.Query().Get("grade"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "ErrGradeRequired")
		return
	}
	writeJSON(w, http.StatusOK, h.tasks.Tasks(r.Context(), grade))
}

// parseGrade accepts a non-empty string of ASCII digits.
func parseGrade(s string) (model.Grade, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return model.Grade(n), true
}

type answersRequest struct {
	Name    string             `json:"name"`
	Answers *[]json.RawMessage `json:"answers"`
}

func (h *Handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Answers == nil {
		writeError(w, r, http.StatusBadRequest, "ErrNameAnswersRequired")
		return
	}

	rec := h.load(req.Name)
	if rec == nil {
		writeError(w, r, http.StatusNotFound, "ErrUserNotFound")
		return
	}
	rec.Answers = *req.Answers
	h.save(req.Name, rec)
	writeJSON(w, http.StatusOK, map[string]string{"message": i18n.T(r.Context(), "AnswersSaved")})
}

type analyzeRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "ErrNameRequired")
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), req.Name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, analysis.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "ErrUserIncomplete")
	case errors.Is(err, analysis.ErrPromptUnavailable):
		writeError(w, r, http.StatusInternalServerError, "ErrPromptUnavailable")
	case errors.Is(err, analysis.ErrAnalysisMalformed):
		writeError(w, r, http.StatusInternalServerError, "ErrAnalysisMalformed")
	case errors.Is(err, analysis.ErrAnalysisUnavailable):
		writeError(w, r, http.StatusInternalServerError, "ErrOracleBusy")
	default:
		slog.Error("analysis failed", "user", req.Name, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
	}
}

// load returns the stored record or nil. Store errors count as absence.
func (h *Handler) load(name string) *model.UserRecord {
	rec, err := h.store.Load(name)
	if err != nil {
		slog.Error("failed to load user record", "user", name, "error", err)
		return nil
	}
	return rec
}

// save persists rec. A failed write is logged and otherwise ignored.
func (h *Handler) save(name string, rec *model.UserRecord) {
	if err := h.store.Save(name, rec); err != nil {
		slog.Error("failed to save user record", "user", name, "error", err)
	}
}
