package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"incidentbot/internal/domain"
)

func sliceLoader(entries []domain.PlaceEntry) Loader {
	return func() ([]domain.PlaceEntry, error) {
		return entries, nil
	}
}

func testEntries() []domain.PlaceEntry {
	return []domain.PlaceEntry{
		{ID: "villa-1205", Label: "Villa 1205", Aliases: []string{"1205"}, RoomNumber: 1205, Active: true},
		{ID: "cocina-nido", Label: "Cocina Nido", Aliases: []string{"la cocina del nido"}, Active: true},
		{ID: "bodega-vieja", Label: "Bodega Vieja", Active: false},
	}
}

func TestStoreIndexes(t *testing.T) {
	s, err := NewStore(sliceLoader(testEntries()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if e, ok := s.ByNumber(1205); !ok || e.ID != "villa-1205" {
		t.Fatalf("ByNumber(1205): got %v ok=%v", e, ok)
	}
	if _, ok := s.ByNumber(9999); ok {
		t.Fatal("unregistered number must miss")
	}

	// Inactive entries stay out of the phrase index but remain addressable by id.
	for _, p := range s.Phrases() {
		if p.Entry.ID == "bodega-vieja" {
			t.Fatal("inactive entry leaked into phrase index")
		}
	}
	if _, ok := s.ByID("bodega-vieja"); !ok {
		t.Fatal("inactive entry should still resolve by id")
	}
}

func TestPhraseIndexLongestFirstAndStopwordForms(t *testing.T) {
	s, err := NewStore(sliceLoader(testEntries()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	phrases := s.Phrases()
	for i := 1; i < len(phrases); i++ {
		if len(phrases[i-1].Text) < len(phrases[i].Text) {
			t.Fatalf("phrase index not longest-first at %d: %q then %q", i, phrases[i-1].Text, phrases[i].Text)
		}
	}

	// The article-stripped form of an alias must be indexed too.
	found := false
	for _, p := range phrases {
		if p.Text == "cocina nido" && p.Entry.ID == "cocina-nido" {
			found = true
		}
	}
	if !found {
		t.Fatal("stopword-stripped alias form missing from index")
	}
}

func TestReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	calls := 0
	loader := func() ([]domain.PlaceEntry, error) {
		calls++
		if calls > 1 {
			return nil, fmt.Errorf("source down")
		}
		return testEntries(), nil
	}

	s, err := NewStore(loader)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload failure")
	}
	if _, ok := s.ByNumber(1205); !ok {
		t.Fatal("failed reload must keep previous snapshot")
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
places:
  - id: spa
    label: Spa Aurora
    aliases: ["spa", "el spa"]
    active: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := FileLoader(path)()
	if err != nil {
		t.Fatalf("FileLoader: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "spa" || len(entries[0].Aliases) != 2 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if _, err := FileLoader(filepath.Join(dir, "missing.yaml"))(); err == nil {
		t.Fatal("missing catalog must error (startup-fatal)")
	}
}

func TestLoadZones(t *testing.T) {
	dir := t.TempDir()

	// Missing file is allowed.
	zones, err := LoadZones(filepath.Join(dir, "missing.yaml"))
	if err != nil || zones != nil {
		t.Fatalf("missing zones file should be inert, got %v %v", zones, err)
	}

	path := filepath.Join(dir, "zones.yaml")
	content := `
zones:
  - key: cocina
    triggers: ["cocina"]
    prompt: "¿Cuál cocina?"
    options:
      - code: "1"
        label: "Cocina Principal"
        canonical: cocina-principal
      - code: "2"
        label: "Cocina Nido"
        canonical: cocina-nido
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	zones, err = LoadZones(path)
	if err != nil {
		t.Fatalf("LoadZones: %v", err)
	}
	if len(zones) != 1 || len(zones[0].Options) != 2 || zones[0].Options[1].Canonical != "cocina-nido" {
		t.Fatalf("unexpected zones: %+v", zones)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("zones:\n  - key: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadZones(bad); err == nil {
		t.Fatal("zone without triggers/options must be rejected")
	}
}
