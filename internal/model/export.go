package model

import "time"

// UserExport is the top-level JSON structure written by the export command.
type UserExport struct {
	ExportedAt      time.Time   `json:"exported_at"`
	StoreKey        string      `json:"store_key"`
	QuestsCompleted int         `json:"quests_completed"`
	SkillTimeline   []string    `json:"skill_timeline"`
	Record          *UserRecord `json:"record"`
}

// NewUserExport wraps a stored record with export metadata.
func NewUserExport(key string, rec *UserRecord, now time.Time) UserExport {
	d := BuildDashboard(rec)
	return UserExport{
		ExportedAt:      now.UTC(),
		StoreKey:        key,
		QuestsCompleted: d.QuestsCompleted,
		SkillTimeline:   d.SkillTimeline,
		Record:          rec,
	}
}
