package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/careerquest/internal/model"
)

// ErrNotFound is returned by Export when no record exists for the name.
var ErrNotFound = errors.New("user record not found")

// Export builds an export-ready view of one user's record.
func Export(s Store, name string, now time.Time) (*model.UserExport, error) {
	rec, err := s.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %q (key %q)", ErrNotFound, name, Key(name))
	}

	export := model.NewUserExport(Key(name), rec, now)
	return &export, nil
}
