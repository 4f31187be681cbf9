// Package quest builds the set of tasks a student works through in one quest.
package quest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/careerquest/internal/knowledge"
	"github.com/pavelanni/careerquest/internal/llm"
	"github.com/pavelanni/careerquest/internal/llm/prompts"
	"github.com/pavelanni/careerquest/internal/metrics"
	"github.com/pavelanni/careerquest/internal/model"
)

// Kind identifies a task type.
type Kind string

const (
	KindLogic          Kind = "logic"
	KindCreative       Kind = "creative"
	KindMath           Kind = "math"
	KindProblemSolving Kind = "problem_solving"
	KindCollaboration  Kind = "collaboration"
)

// LogicRiddle is the fixed logical reasoning task.
const LogicRiddle = "A man is looking at a portrait. He says, 'Brothers and sisters I have none, " +
	"but that man's father is my father's son.' Who is in the portrait?"

const placeholderImageURL = "https://placehold.co/600x400/%s?text=%s"

// Shown for a kind missing from the catalog.
const (
	genericDescription = "Describe how you would tackle a brand new challenge."
	genericImageText   = "CareerQuest"
	genericColors      = "e0c3fc/4a47a3"
)

type taskDef struct {
	id       string
	title    string
	kind     Kind
	template string

	fallbackDescription string
	fallbackImageText   string
	colors              string
}

// catalog lists the quest tasks in the order they are presented.
var catalog = []taskDef{
	{id: "task1", title: "Logical Reasoning", kind: KindLogic},
	{
		id: "task2", title: "Creative Thinking", kind: KindCreative, template: prompts.CreativeTask,
		fallbackDescription: "Invent a solution to reduce plastic waste in oceans.",
		fallbackImageText:   "Ocean Plastic Solution",
		colors:              "e0f2fe/0c4a6e",
	},
	{
		id: "task3", title: "Mathematical Thinking", kind: KindMath, template: prompts.MathTask,
		fallbackDescription: "If a square has a side length of 5cm, what is its area?",
		fallbackImageText:   "Math Problem",
		colors:              "e0e7ff/4338ca",
	},
	{
		id: "task4", title: "Problem Solving", kind: KindProblemSolving, template: prompts.ProblemSolvingTask,
		fallbackDescription: "Design a community garden for your neighborhood.",
		fallbackImageText:   "Community Garden Design",
		colors:              "dbeafe/1e40af",
	},
	{
		id: "task5", title: "Collaboration Skills", kind: KindCollaboration, template: prompts.CollaborationTask,
		fallbackDescription: "Describe a time you worked in a team.",
		fallbackImageText:   "Teamwork and Collaboration",
		colors:              "dcfce7/166534",
	},
}

func lookup(kind Kind) (taskDef, bool) {
	for _, d := range catalog {
		if d.kind == kind {
			return d, true
		}
	}
	return taskDef{}, false
}

// Illustration is a generated task description with its picture.
type Illustration struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// generated is what the task prompts ask the provider to return.
type generated struct {
	Description string `json:"description"`
	ImagePrompt string `json:"image_prompt"`
}

func (g generated) validate() error {
	if strings.TrimSpace(g.Description) == "" {
		return errors.New("missing description")
	}
	if strings.TrimSpace(g.ImagePrompt) == "" {
		return errors.New("missing image_prompt")
	}
	return nil
}

// VideoFinder finds a learning video for a search term.
type VideoFinder interface {
	FindVideo(ctx context.Context, term string) (knowledge.Video, bool)
}

// Generator produces quest tasks. The provider is called once per
// generated task; any failure yields that kind's fallback.
type Generator struct {
	provider llm.Provider
	prompts  *prompts.Store
	topics   VideoFinder
}

// NewGenerator creates a Generator. topics may be nil, in which case the
// math task uses the plain grade-band search term as its topic.
func NewGenerator(provider llm.Provider, store *prompts.Store, topics VideoFinder) *Generator {
	return &Generator{provider: provider, prompts: store, topics: topics}
}

// Fallback returns the fixed illustration for kind. It does not depend on
// any provider.
func Fallback(kind Kind) Illustration {
	d, ok := lookup(kind)
	if !ok {
		return Illustration{
			Description: genericDescription,
			ImageURL:    ImageURL(genericColors, genericImageText),
		}
	}
	if d.kind == KindLogic {
		return Illustration{Description: LogicRiddle}
	}
	return Illustration{
		Description: d.fallbackDescription,
		ImageURL:    ImageURL(d.colors, d.fallbackImageText),
	}
}

// ImageURL builds a placeholder image URL showing text on the given
// "background/foreground" color pair. text is query-escaped with spaces
// as %20.
func ImageURL(colors, text string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf(placeholderImageURL, colors, escaped)
}

// MathSearchTerm maps a grade to the topic-tree search term for math tasks.
func MathSearchTerm(grade model.Grade) string {
	switch {
	case grade <= 3:
		return "early math"
	case grade <= 7:
		return "arithmetic"
	default:
		return "algebra basics"
	}
}

// Generate returns an illustrated task of the given kind for grade. It never
// fails: every error path returns Fallback(kind). A generated math task shows
// the thumbnail of the topic-tree video it is based on, when one was found.
func (g *Generator) Generate(ctx context.Context, kind Kind, grade model.Grade) Illustration {
	d, ok := lookup(kind)
	if !ok {
		slog.Error("unknown task kind", "kind", kind)
		return Fallback(kind)
	}
	if d.kind == KindLogic {
		metrics.TasksGeneratedTotal.WithLabelValues(string(kind), "static").Inc()
		return Fallback(kind)
	}

	fallback := func(reason string, err error) Illustration {
		slog.Warn("task generation fell back", "kind", kind, "grade", int(grade), "reason", reason, "error", err)
		metrics.TaskFallbacksTotal.WithLabelValues(string(kind), reason).Inc()
		metrics.TasksGeneratedTotal.WithLabelValues(string(kind), "fallback").Inc()
		return Fallback(kind)
	}

	params := map[string]any{"grade": int(grade)}
	var video knowledge.Video
	if kind == KindMath {
		var topic string
		topic, video = g.mathTopic(ctx, grade)
		params["topic"] = topic
	}

	prompt, err := g.prompts.Render(d.template, params)
	if err != nil {
		return fallback("prompt", err)
	}

	raw, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		return fallback("provider", err)
	}

	out, err := llm.ExtractJSON[generated](raw, generated.validate)
	if err != nil {
		slog.Debug("unusable task response", "kind", kind, "response", raw)
		return fallback("extract", err)
	}

	metrics.TasksGeneratedTotal.WithLabelValues(string(kind), "provider").Inc()
	imageURL := video.ImageURL
	if imageURL == "" {
		imageURL = ImageURL(d.colors, strings.TrimSpace(out.ImagePrompt))
	}
	return Illustration{
		Description: strings.TrimSpace(out.Description),
		ImageURL:    imageURL,
	}
}

// mathTopic returns the prompt topic for grade and the video it came from.
// Without a matching video the topic is the plain search term and the video
// is zero.
func (g *Generator) mathTopic(ctx context.Context, grade model.Grade) (string, knowledge.Video) {
	term := MathSearchTerm(grade)
	if g.topics == nil {
		return term, knowledge.Video{}
	}
	if v, ok := g.topics.FindVideo(ctx, term); ok && v.Title != "" {
		return v.Title, v
	}
	return term, knowledge.Video{}
}

// Tasks builds the full quest for grade in presentation order. Provider
// calls for the generated tasks run concurrently.
func (g *Generator) Tasks(ctx context.Context, grade model.Grade) []model.Task {
	tasks := make([]model.Task, len(catalog))
	var eg errgroup.Group
	for i, d := range catalog {
		eg.Go(func() error {
			ill := g.Generate(ctx, d.kind, grade)
			tasks[i] = model.Task{
				ID:          d.id,
				Title:       d.title,
				Description: ill.Description,
				ImageURL:    ill.ImageURL,
			}
			return nil
		})
	}
	_ = eg.Wait()
	return tasks
}
