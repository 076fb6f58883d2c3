package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Makepad-fr/syncprobe/internal/model"
)

// JSON-backed run history. Single file, human-readable, portable.
// No locking; one CI job writes it at a time.

// DefaultLimit caps how many runs Append keeps.
const DefaultLimit = 200

type Store struct {
	Path  string
	Limit int
}

func New(path string) *Store {
	return &Store{Path: path, Limit: DefaultLimit}
}

func (s *Store) Load() ([]model.RunRecord, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.RunRecord{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var runs []model.RunRecord
	if err := json.Unmarshal(b, &runs); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return runs, nil
}

func (s *Store) Save(runs []model.RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(s.Path, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Append adds a run and drops the oldest ones beyond Limit.
func (s *Store) Append(run model.RunRecord) error {
	runs, err := s.Load()
	if err != nil {
		return err
	}
	runs = append(runs, run)
	if s.Limit > 0 && len(runs) > s.Limit {
		runs = runs[len(runs)-s.Limit:]
	}
	return s.Save(runs)
}
