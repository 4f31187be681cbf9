package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Template names.
const (
	MathTask           = "math_task"
	CreativeTask       = "creative_task"
	ProblemSolvingTask = "problem_solving_task"
	CollaborationTask  = "collaboration_task"
	Oracle             = "careerquest_oracle"
)

const maxAnswersRunes = 10000

var (
	// ErrTemplateNotFound indicates the named template does not exist in the backing store.
	ErrTemplateNotFound = errors.New("prompt template not found")
	// ErrMissingParameter indicates the template references a parameter that was not supplied.
	ErrMissingParameter = errors.New("prompt parameter missing")
)

var (
	studentAnswersRegex     = regexp.MustCompile(`(?i)</?\s*student-answers\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Store renders named prompt templates from a file system. Templates are
// read on every call, so edits to a prompts directory apply immediately.
type Store struct {
	fsys fs.FS
}

// New returns a Store backed by fsys. Template "x" is read from "x.tmpl".
func New(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// Default returns a Store backed by the templates compiled into the binary.
func Default() *Store {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return New(sub)
}

// Dir returns a Store backed by a directory on disk.
func Dir(path string) *Store {
	return New(os.DirFS(path))
}

// Render loads the named template and substitutes params. Every placeholder
// in the template must be present in params; unused params are ignored.
func (s *Store) Render(name string, params map[string]any) (string, error) {
	file := name + ".tmpl"
	content, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrTemplateNotFound, file)
		} else {
			err = fmt.Errorf("read prompt template %s: %w", file, err)
		}
		slog.Error("failed to load prompt", "template", name, "error", err)
		return "", err
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		err = fmt.Errorf("parse prompt template %s: %w", file, err)
		slog.Error("failed to load prompt", "template", name, "error", err)
		return "", err
	}

	if params == nil {
		params = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		if strings.Contains(err.Error(), "no entry for key") {
			err = fmt.Errorf("%w: %s: %v", ErrMissingParameter, file, err)
		} else {
			err = fmt.Errorf("render prompt template %s: %w", file, err)
		}
		slog.Error("failed to render prompt", "template", name, "error", err)
		return "", err
	}

	return buf.String(), nil
}

// FormatAnswers serializes a student's answer set for inclusion in a prompt.
// Delimiter-like tags are stripped and very long input is truncated.
func FormatAnswers(answers []json.RawMessage) string {
	if len(answers) == 0 {
		return "[No answers provided]"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(answers); err != nil {
		// Stored answers are opaque; fall back to concatenating them verbatim.
		parts := make([]string, len(answers))
		for i, a := range answers {
			parts[i] = string(a)
		}
		buf.Reset()
		buf.WriteString("[" + strings.Join(parts, ",\n") + "]")
	}
	return sanitize(buf.String())
}

func sanitize(text string) string {
	text = studentAnswersRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > maxAnswersRunes {
		runes := []rune(text)
		text = string(runes[:maxAnswersRunes]) + "\n\n[Answers truncated due to length]"
	}
	return text
}
