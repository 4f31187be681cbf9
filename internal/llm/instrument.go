package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/careerquest/internal/metrics"
)

type instrumented struct {
	inner Provider
}

// WithMetrics wraps a Provider so every call is timed, counted and logged.
func WithMetrics(p Provider) Provider {
	return &instrumented{inner: p}
}

func (i *instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := i.inner.Generate(ctx, prompt)
	elapsed := time.Since(start)

	status := statusLabel(err)
	metrics.ProviderRequestsTotal.WithLabelValues(i.inner.Name(), i.inner.ModelID(), status).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(i.inner.Name(), i.inner.ModelID()).Observe(elapsed.Seconds())

	if err != nil {
		slog.Warn("LLM call failed",
			"provider", i.inner.Name(), "model", i.inner.ModelID(),
			"status", status, "elapsed", elapsed, "error", err)
		return "", err
	}
	slog.Debug("LLM response",
		"provider", i.inner.Name(), "model", i.inner.ModelID(),
		"elapsed", elapsed, "raw", text)
	return text, nil
}

func (i *instrumented) Name() string { return i.inner.Name() }

func (i *instrumented) ModelID() string { return i.inner.ModelID() }
