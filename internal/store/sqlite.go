package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pavelanni/careerquest/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records as JSON documents in a single SQLite table. It
// has the same create/read/overwrite contract as FileStore.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_records (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		record TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load(name string) (*model.UserRecord, error) {
	var raw string
	err := s.db.QueryRow(`SELECT record FROM user_records WHERE key = ?`, Key(name)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user record: %w", err)
	}

	var rec model.UserRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Error("failed to parse user record", "user", name, "error", err)
		return nil, nil
	}
	normalize(&rec)
	return &rec, nil
}

// Save upserts the record for name.
func (s *SQLiteStore) Save(name string, rec *model.UserRecord) error {
	normalize(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO user_records (key, name, record, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET name = excluded.name, record = excluded.record, updated_at = excluded.updated_at`,
		Key(name), rec.Name, string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save user record: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM user_records`).Scan(&n)
	return n, err
}
