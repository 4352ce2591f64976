package domain

// Intent is the macro classification of an inbound message.
type Intent string

const (
	IntentCommand       Intent = "command"
	IntentTicketRef     Intent = "ticket_reference"
	IntentContinueDraft Intent = "continue_draft"
	IntentNewIncident   Intent = "new_incident"
	IntentStatusQuery   Intent = "status_query"
	IntentHelp          Intent = "help"
	IntentSmalltalk     Intent = "smalltalk"
	IntentUnknown       Intent = "unknown"
)

// Flow names the handler an intent routes to.
type Flow string

const (
	FlowCommand       Flow = "command"
	FlowDrafting      Flow = "drafting"
	FlowStatus        Flow = "status"
	FlowTeamUpdate    Flow = "team_update"
	FlowHelp          Flow = "help"
	FlowSmalltalk     Flow = "smalltalk"
	FlowAccessRequest Flow = "access_request"
	FlowFallback      Flow = "fallback"
)

// IntentSignals are the structural features extracted while classifying.
type IntentSignals struct {
	HasCommandPrefix bool
	TicketID         string
	IsGreeting       bool
	AsksForHelp      bool
	AsksForStatus    bool
	IncidentLike     bool
	WordCount        int
}

// IntentResult is the ephemeral output of the macro classifier.
type IntentResult struct {
	Intent     Intent
	Flow       Flow
	Confidence float64
	Reason     string
	Signals    IntentSignals
}
