package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/pavelanni/careerquest/internal/model"
)

// Store persists one UserRecord per normalized username.
//
// Load returns (nil, nil) when no record exists. A record that exists but
// cannot be decoded is logged and reported as absent too. Save replaces the
// whole record. Neither backend locks across concurrent writers: the last
// Save for a key wins.
type Store interface {
	Load(name string) (*model.UserRecord, error)
	Save(name string, rec *model.UserRecord) error
	Close() error
}

// Key derives the storage key for a username: lowercased, letters and
// digits only. Distinct names that normalize to the same key share a record.
func Key(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}

// Open creates the backend selected by kind ("file" or "sqlite").
func Open(kind, dataDir, dbPath string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(dataDir)
	case "sqlite":
		return NewSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown store %q (want file or sqlite)", kind)
	}
}

// normalize fills nil collections so records always serialize with [] rather
// than null.
func normalize(rec *model.UserRecord) {
	if rec.Answers == nil {
		rec.Answers = []json.RawMessage{}
	}
	if rec.ReportHistory == nil {
		rec.ReportHistory = []model.Report{}
	}
}
