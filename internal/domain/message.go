package domain

import "time"

// InboundMessage is one turn arriving from the transport layer.
type InboundMessage struct {
	MessageID      string
	ConversationID string
	SenderID       string // sub-identity inside group conversations
	Text           string
	QuotedText     string // body of a quoted/replied-to message, if any
	ReceivedAt     time.Time
}

// ReplyKind tells the notification collaborator what the payload means. The
// core returns data, never formatted user-facing strings.
type ReplyKind string

const (
	ReplyAskDescription ReplyKind = "ask_description"
	ReplyAskPlace       ReplyKind = "ask_place"
	ReplyAskArea        ReplyKind = "ask_area"
	ReplyDisambiguate   ReplyKind = "disambiguate_zone"
	ReplyPreview        ReplyKind = "preview"
	ReplyCreated        ReplyKind = "incident_created"
	ReplyCancelled      ReplyKind = "draft_cancelled"
	ReplyStatus         ReplyKind = "incident_status"
	ReplyUpdated        ReplyKind = "incident_updated"
	ReplyHelp           ReplyKind = "help"
	ReplySmalltalk      ReplyKind = "smalltalk"
	ReplyAccessPending  ReplyKind = "access_pending"
	ReplyDenied         ReplyKind = "denied"
	ReplyDuplicate      ReplyKind = "duplicate"
	ReplyFallback       ReplyKind = "fallback"
)

// Reply is the structured outcome of one routed turn.
type Reply struct {
	Kind   ReplyKind
	Reason string

	Draft       *Draft
	Incident    *Incident
	Candidates  []PlaceCandidate
	Departments []DeptScore
	ZonePrompt  string
	ZoneOptions []ZoneOption
}
