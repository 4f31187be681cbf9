// Package knowledge fetches reference material that enriches quests and
// reports: encyclopedia summaries and the learning-video topic tree.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/careerquest/internal/i18n"
	"github.com/pavelanni/careerquest/internal/metrics"
)

// DefaultWikipediaURL is the REST summary endpoint; the page title is appended.
const DefaultWikipediaURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"

// summarySentences is how many sentences of the extract are kept.
const summarySentences = 3

var (
	ErrPageNotFound = errors.New("wikipedia page not found")
	ErrAmbiguous    = errors.New("wikipedia topic is ambiguous")
)

// Summarizer turns a topic into a short human-readable summary.
type Summarizer interface {
	Summarize(ctx context.Context, topic string) string
}

// Wikipedia is a Summarizer backed by the Wikipedia REST API.
type Wikipedia struct {
	baseURL    string
	httpClient *http.Client
}

type wikiSummary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// NewWikipedia returns a client for baseURL. An empty baseURL selects
// DefaultWikipediaURL.
func NewWikipedia(baseURL string) *Wikipedia {
	if baseURL == "" {
		baseURL = DefaultWikipediaURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Wikipedia{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Summarize returns the first sentences of the topic's article. It never
// fails: a missing page, an ambiguous title, or any transport problem yields
// a localized explanatory sentence instead.
func (w *Wikipedia) Summarize(ctx context.Context, topic string) string {
	text, err := w.Lookup(ctx, topic)
	switch {
	case err == nil:
		metrics.KnowledgeLookupsTotal.WithLabelValues("wikipedia", "ok").Inc()
		return text
	case errors.Is(err, ErrPageNotFound):
		metrics.KnowledgeLookupsTotal.WithLabelValues("wikipedia", "not_found").Inc()
		return i18n.Td(ctx, "WikiNotFound", map[string]any{"Topic": topic})
	case errors.Is(err, ErrAmbiguous):
		metrics.KnowledgeLookupsTotal.WithLabelValues("wikipedia", "ambiguous").Inc()
		return i18n.Td(ctx, "WikiAmbiguous", map[string]any{"Topic": topic})
	default:
		metrics.KnowledgeLookupsTotal.WithLabelValues("wikipedia", "error").Inc()
		slog.Warn("wikipedia lookup failed", "topic", topic, "error", err)
		return i18n.T(ctx, "WikiUnavailable")
	}
}

// Lookup fetches the topic's summary and trims it to a few sentences.
func (w *Wikipedia) Lookup(ctx context.Context, topic string) (string, error) {
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	if title == "" {
		return "", ErrPageNotFound
	}
	endpoint := w.baseURL + url.PathEscape(title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build wikipedia request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %q", ErrPageNotFound, topic)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("wikipedia returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out wikiSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode wikipedia summary: %w", err)
	}
	if out.Type == "disambiguation" {
		return "", fmt.Errorf("%w: %q", ErrAmbiguous, topic)
	}
	if strings.TrimSpace(out.Extract) == "" {
		return "", fmt.Errorf("%w: %q has no extract", ErrPageNotFound, topic)
	}
	return firstSentences(out.Extract, summarySentences), nil
}

// firstSentences keeps the first n sentences of text. A sentence ends at
// '.', '!' or '?' followed by whitespace or the end of the text.
func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		count++
		if count == n {
			return string(runes[:i+1])
		}
	}
	return text
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
