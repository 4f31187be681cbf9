package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pavelanni/careerquest/internal/model"
)

const (
	filePrefix = "user_"
	fileSuffix = ".json"
)

// FileStore keeps each record as a pretty-printed JSON file in one directory.
// Writes go straight to the target file with no temp file or rename, so a
// crash mid-write can leave a corrupt record behind; Load then treats it as
// absent.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file that holds name's record.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, filePrefix+Key(name)+fileSuffix)
}

func (s *FileStore) Load(name string) (*model.UserRecord, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		slog.Error("failed to read user record", "user", name, "path", path, "error", err)
		return nil, nil
	}

	var rec model.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Error("failed to parse user record", "user", name, "path", path, "error", err)
		return nil, nil
	}
	normalize(&rec)
	return &rec, nil
}

func (s *FileStore) Save(name string, rec *model.UserRecord) error {
	normalize(rec)
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := os.WriteFile(s.Path(name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write user record: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
