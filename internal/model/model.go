package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Report field names shared by the analysis engine, the dashboard and tests.
const (
	KeyFeedback          = "feedback"
	KeyCareerCluster     = "career_cluster"
	KeySkillSuperpower   = "skill_superpower"
	KeyLookupKeyword     = "lookup_keyword"
	KeyLearningTools     = "learning_tools"
	KeyWikipediaSummary  = "wikipedia_summary"
	KeyConfidenceScore   = "confidence_score"
	KeyConsistency       = "consistency_rating"
	KeyFeedbackSummary   = "user_feedback_summary"
	KeyDateCompleted     = "date_completed"
	KeyAssessmentVersion = "assessment_version"
	KeyReportID          = "report_id"
)

// UserRecord is everything persisted for one student.
type UserRecord struct {
	Name          string            `json:"name"`
	Grade         Grade             `json:"grade"`
	Answers       []json.RawMessage `json:"answers"`
	ReportHistory []Report          `json:"report_history"`
}

// NewUserRecord returns a fresh record with empty answers and history.
func NewUserRecord(name string, grade Grade) *UserRecord {
	return &UserRecord{
		Name:          name,
		Grade:         grade,
		Answers:       []json.RawMessage{},
		ReportHistory: []Report{},
	}
}

// Grade is a school grade. It is not range-checked. It decodes from a JSON
// number or a numeric string because clients send both. A fractional value
// is truncated toward zero, so 10.0 is grade 10 and 9.7 is grade 9.
type Grade int

func (g *Grade) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if n, err := strconv.Atoi(s); err == nil {
		*g = Grade(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("grade %s is not an integer", string(data))
	}
	*g = Grade(math.Trunc(f))
	return nil
}

// Report is one analysis result. Its shape comes from the provider and is
// only partially fixed; see ReportVariant.
type Report map[string]any

// ReportVariant discriminates the report shapes the provider may return.
type ReportVariant string

const (
	VariantFeedback     ReportVariant = "feedback"
	VariantYoungLearner ReportVariant = "young_learner"
	VariantOlderLearner ReportVariant = "older_learner"
)

// OlderLearnerMinGrade is the first grade that gets career-cluster reports.
const OlderLearnerMinGrade Grade = 9

// Variant classifies the report. A feedback key without any skill headline
// is the low-effort variant; otherwise the grade band decides which shape
// is expected.
func (r Report) Variant(grade Grade) ReportVariant {
	if _, ok := r[KeyFeedback]; ok && r.Headline() == "" {
		return VariantFeedback
	}
	if grade >= OlderLearnerMinGrade {
		return VariantOlderLearner
	}
	return VariantYoungLearner
}

// String returns the string value stored under key, or "".
func (r Report) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Headline is the skill name shown on the dashboard timeline.
func (r Report) Headline() string {
	if s := r.String(KeyCareerCluster); s != "" {
		return s
	}
	return r.String(KeySkillSuperpower)
}

// Task is one quest task offered to a student. Tasks are never persisted.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Dashboard summarizes a student's report history.
type Dashboard struct {
	QuestsCompleted int      `json:"quests_completed"`
	SkillTimeline   []string `json:"skill_timeline"`
}

// BuildDashboard derives the dashboard from a record's history.
func BuildDashboard(rec *UserRecord) Dashboard {
	d := Dashboard{SkillTimeline: []string{}}
	if rec == nil {
		return d
	}
	d.QuestsCompleted = len(rec.ReportHistory)
	for _, r := range rec.ReportHistory {
		if h := r.Headline(); h != "" {
			d.SkillTimeline = append(d.SkillTimeline, h)
		}
	}
	return d
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	DataDir      string
	Store        string // "file" or "sqlite"
	DBPath       string
	PromptsDir   string // empty means built-in templates
	Lang         string
	CORSOrigins  []string
	WikiURL      string
	TopicTreeURL string
}
