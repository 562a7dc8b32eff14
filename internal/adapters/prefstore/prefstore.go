// Package prefstore keeps manual skill preferences in a YAML file shaped as
// employee_id: {skill: level}.
package prefstore

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/pkg/metrics"
)

// Store is a concurrency-safe ManualPreferences cache. An empty path keeps
// preferences in memory only.
type Store struct {
	mu    sync.RWMutex
	path  string
	prefs model.ManualPreferences
}

// Open loads path if it exists. A missing file yields an empty store that
// creates the file on the first Put.
func Open(path string) (*Store, error) {
	s := &Store{path: path, prefs: model.ManualPreferences{}}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.prefs); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	if s.prefs == nil {
		s.prefs = model.ManualPreferences{}
	}
	if err := s.prefs.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// All returns a copy of every stored preference.
func (s *Store) All() model.ManualPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.Clone()
}

// Get returns the levels recorded for one employee.
func (s *Store) Get(employeeID string) (map[string]int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	levels, ok := s.prefs[employeeID]
	return maps.Clone(levels), ok
}

// Put overwrites the preferences of one employee and rewrites the file.
// Invalid levels are rejected before anything changes.
func (s *Store) Put(employeeID string, levels map[string]int) error {
	if employeeID == "" {
		return fmt.Errorf("%w: empty employee id", model.ErrInvalidInput)
	}
	next := model.ManualPreferences{employeeID: levels}
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[employeeID] = maps.Clone(levels)
	if s.path == "" {
		return nil
	}
	start := time.Now()
	err := s.save()
	metrics.RecordPersist("preferences", err, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	return nil
}

func (s *Store) save() error {
	raw, err := yaml.Marshal(s.prefs)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
