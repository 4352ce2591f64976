package domain

import "time"

// IncidentStatus is the lifecycle state of a persisted incident.
type IncidentStatus string

const (
	StatusOpen       IncidentStatus = "abierto"
	StatusInProgress IncidentStatus = "en_proceso"
	StatusResolved   IncidentStatus = "resuelto"
	StatusClosed     IncidentStatus = "cerrado"
)

// NormalizeIncidentStatus maps free-form staff phrasing onto the closed status
// set. Unrecognized phrasing returns "".
func NormalizeIncidentStatus(s string) IncidentStatus {
	switch s {
	case "abierto", "abierta", "open", "nuevo":
		return StatusOpen
	case "en_proceso", "en proceso", "proceso", "atendiendo", "in progress":
		return StatusInProgress
	case "resuelto", "resuelta", "listo", "terminado", "done":
		return StatusResolved
	case "cerrado", "cerrada", "closed":
		return StatusClosed
	}
	return ""
}

// Incident is a finalized, persisted record produced from a completed draft.
type Incident struct {
	ID             int64
	Folio          string
	ConversationID string
	ReporterID     string
	Description    string
	PlaceID        string
	PlaceLabel     string
	Department     Department
	Priority       string
	Severity       string
	DueDate        string
	Tags           string // comma-separated
	Notes          string
	Status         IncidentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
