// Package incident finalizes completed drafts into persisted incidents and
// serves folio lookups and team updates on top of the storage layer.
package incident

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"incidentbot/internal/domain"
	"incidentbot/internal/storage"
)

var (
	// ErrIncomplete means the draft is missing one of description, place or
	// department; callers should keep drafting, not retry.
	ErrIncomplete = errors.New("incident: draft incomplete")
	// ErrNotFound wraps unknown-folio lookups.
	ErrNotFound = errors.New("incident: not found")
	// ErrBadStatus means the update phrasing did not map onto the status set.
	ErrBadStatus = errors.New("incident: unrecognized status")
)

type Creator struct {
	db *sql.DB
}

func NewCreator(db *sql.DB) *Creator {
	return &Creator{db: db}
}

// CreateFromDraft persists a completed draft and returns the incident with
// its assigned folio. The draft itself is left to the caller to close.
func (c *Creator) CreateFromDraft(d *domain.Draft, reporterID string) (*domain.Incident, error) {
	if d == nil || d.Description == "" || d.Place == nil || d.Department == "" {
		return nil, ErrIncomplete
	}
	inc := &domain.Incident{
		ConversationID: d.ConversationID,
		ReporterID:     reporterID,
		Description:    d.Description,
		PlaceID:        d.Place.ID,
		PlaceLabel:     d.Place.Label,
		Department:     d.Department,
		Priority:       d.Priority,
		Severity:       d.Severity,
		DueDate:        d.DueDate,
		Tags:           strings.Join(d.Tags, ","),
		Notes:          strings.Join(d.Notes, "\n"),
	}
	if err := storage.InsertIncident(c.db, inc); err != nil {
		return nil, fmt.Errorf("persist incident: %w", err)
	}
	log.Printf("incident created folio=%s dept=%s place=%s", inc.Folio, inc.Department, inc.PlaceID)
	return inc, nil
}

// Lookup fetches one incident by folio.
func (c *Creator) Lookup(folio string) (*domain.Incident, error) {
	inc, err := storage.GetIncidentByFolio(c.db, folio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, folio)
	}
	if err != nil {
		return nil, fmt.Errorf("incident lookup: %w", err)
	}
	return &inc, nil
}

// Update applies a team update to an incident: free-form status phrasing is
// normalized onto the closed set, the note is appended verbatim.
func (c *Creator) Update(folio, rawStatus, note string) (*domain.Incident, error) {
	status := domain.NormalizeIncidentStatus(rawStatus)
	if status == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadStatus, rawStatus)
	}
	if _, err := c.Lookup(folio); err != nil {
		return nil, err
	}
	if err := storage.UpdateIncidentStatus(c.db, folio, status, note); err != nil {
		return nil, fmt.Errorf("incident update: %w", err)
	}
	return c.Lookup(folio)
}

// OpenForConversation lists the conversation's unresolved incidents, newest
// first, for folio-less status questions.
func (c *Creator) OpenForConversation(conversationID string, limit int) ([]domain.Incident, error) {
	return storage.ListOpenIncidentsByConversation(c.db, conversationID, limit)
}
