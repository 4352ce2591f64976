package domain

import "time"

// Mode is the drafting conversation state.
type Mode string

const (
	ModeNeutral    Mode = "neutral"
	ModeAskPlace   Mode = "asking_for_place"
	ModeAskArea    Mode = "asking_for_area"
	ModePreview    Mode = "preview"
	ModeConfirm    Mode = "confirm"
)

// HistoryEntry is one remembered turn of the drafting conversation.
type HistoryEntry struct {
	Role string // "user" or "bot"
	Text string
	At   time.Time
}

// Draft is the in-progress incident being assembled across turns for one
// conversation. It is mutable and owned by the session store; the router must
// hold the conversation lock while touching it.
type Draft struct {
	ConversationID string
	Description    string
	Interpretation string // normalized reading of the description

	Place          *PlaceEntry
	Department     Department
	DeptSource     string // "alias", "lexicon", "semantic"
	DeptConfidence float64
	CandidateDepts []Department

	Priority string
	Severity string
	DueDate  string
	Building string
	Floor    string
	Room     string
	Tags     []string
	Notes    []string

	Mode          Mode
	AskedForPlace bool
	AskedForArea  bool
	PendingZone   string // zone key when a disambiguation prompt is outstanding

	History   []HistoryEntry
	CreatedAt time.Time
	UpdatedAt time.Time
	Closed    bool
}
