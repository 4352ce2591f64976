package incident

import (
	"errors"
	"path/filepath"
	"testing"

	"incidentbot/internal/domain"
	"incidentbot/internal/storage"
)

func testCreator(t *testing.T) *Creator {
	t.Helper()
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "incidents.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCreator(db)
}

func completeDraft() *domain.Draft {
	return &domain.Draft{
		ConversationID: "conv-1",
		Description:    "no enciende el aire de la villa",
		Place:          &domain.PlaceEntry{ID: "villa-1205", Label: "Villa 1205"},
		Department:     domain.DeptMaintenance,
		Tags:           []string{"clima", "urgente"},
	}
}

func TestCreateFromDraft(t *testing.T) {
	c := testCreator(t)

	inc, err := c.CreateFromDraft(completeDraft(), "u-7")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inc.Folio == "" || inc.Status != domain.StatusOpen {
		t.Fatalf("incident not finalized: %+v", inc)
	}
	if inc.Tags != "clima,urgente" || inc.ReporterID != "u-7" {
		t.Fatalf("draft fields not carried over: %+v", inc)
	}

	got, err := c.Lookup(inc.Folio)
	if err != nil || got.Description != inc.Description {
		t.Fatalf("lookup after create: %+v %v", got, err)
	}
}

func TestCreateFromDraftRejectsIncomplete(t *testing.T) {
	c := testCreator(t)

	d := completeDraft()
	d.Place = nil
	if _, err := c.CreateFromDraft(d, ""); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if _, err := c.CreateFromDraft(nil, ""); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("nil draft: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	c := testCreator(t)

	inc, err := c.CreateFromDraft(completeDraft(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := c.Update(inc.Folio, "en proceso", "ya vamos para alla")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusInProgress || updated.Notes == "" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := c.Update(inc.Folio, "quien sabe", ""); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
	if _, err := c.Update("INC-1999-0001", "listo", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
