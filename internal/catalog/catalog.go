// Package catalog owns the canonical place directory: loading it from its
// data source, the numeric-id and phrase reverse indexes, and best-effort
// reloads when a lookup comes up empty.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"incidentbot/internal/domain"
	"incidentbot/internal/textnorm"
)

// Loader produces the full place list. Injected so tests can swap the data
// source for a slice.
type Loader func() ([]domain.PlaceEntry, error)

type catalogFile struct {
	Places []domain.PlaceEntry `yaml:"places"`
}

// FileLoader reads the catalog from a YAML file.
func FileLoader(path string) Loader {
	return func() ([]domain.PlaceEntry, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse catalog yaml: %w", err)
		}
		if len(f.Places) == 0 {
			return nil, fmt.Errorf("catalog %s has no places", path)
		}
		return f.Places, nil
	}
}

// Phrase is one normalized alias pointing at its catalog entry.
type Phrase struct {
	Text  string
	Entry domain.PlaceEntry
}

// Store caches the catalog and its two indexes. Safe for concurrent readers.
type Store struct {
	loader Loader

	mu       sync.RWMutex
	entries  []domain.PlaceEntry
	byID     map[string]domain.PlaceEntry
	byNumber map[int]domain.PlaceEntry
	phrases  []Phrase // sorted longest-first so specific aliases win ties
}

// NewStore loads the catalog once. A failed initial load is a configuration
// error and must abort startup.
func NewStore(loader Loader) (*Store, error) {
	s := &Store{loader: loader}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-runs the loader and swaps the indexes atomically. On failure the
// previous snapshot stays in place.
func (s *Store) Reload() error {
	entries, err := s.loader()
	if err != nil {
		return err
	}

	byID := make(map[string]domain.PlaceEntry, len(entries))
	byNumber := make(map[int]domain.PlaceEntry)
	var phrases []Phrase
	for _, e := range entries {
		byID[e.ID] = e
		if !e.Active {
			continue
		}
		if e.RoomNumber > 0 {
			byNumber[e.RoomNumber] = e
		}
		seen := map[string]bool{}
		for _, raw := range append([]string{e.Label}, e.Aliases...) {
			for _, text := range []string{textnorm.Normalize(raw), textnorm.NormalizeBare(raw)} {
				if text == "" || seen[text] {
					continue
				}
				seen[text] = true
				phrases = append(phrases, Phrase{Text: text, Entry: e})
			}
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i].Text) > len(phrases[j].Text)
	})

	s.mu.Lock()
	s.entries = entries
	s.byID = byID
	s.byNumber = byNumber
	s.phrases = phrases
	s.mu.Unlock()
	return nil
}

// ByNumber looks up an active place by its numeric room/villa id.
func (s *Store) ByNumber(n int) (domain.PlaceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byNumber[n]
	return e, ok
}

// ByID looks up a place by catalog id, active or not.
func (s *Store) ByID(id string) (domain.PlaceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

// Phrases returns the normalized phrase index snapshot, longest-first.
func (s *Store) Phrases() []Phrase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phrases
}

// Entries returns the raw catalog snapshot.
func (s *Store) Entries() []domain.PlaceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}
