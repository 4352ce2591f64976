// Package intent performs the macro classification of inbound messages from
// structural signals only. It never calls the semantic service: by the time a
// message needs language understanding it is already inside a drafting flow.
package intent

import (
	"incidentbot/internal/areas"
	"incidentbot/internal/domain"
	"incidentbot/internal/textnorm"
)

type Classifier struct {
	incidentVocab []string
}

// NewClassifier merges the generic breakage vocabulary with the department
// lexicon's hints and devices, so everything the detector can score also
// counts as incident-like here.
func NewClassifier(lex *areas.Lexicon) *Classifier {
	vocab := append([]string{}, incidentWords...)
	if lex != nil {
		vocab = append(vocab, lex.FailurePhrases...)
		for _, dept := range lex.Departments {
			vocab = append(vocab, dept.Hints...)
			vocab = append(vocab, dept.Devices...)
		}
	}
	return &Classifier{incidentVocab: vocab}
}

// Classify picks one intent per message. Ties break on a fixed priority:
// command > ticket reference > active-draft continuation > incident-like >
// status query > help > smalltalk > unknown.
func (c *Classifier) Classify(msg domain.InboundMessage, hasActiveDraft bool) domain.IntentResult {
	normalized := textnorm.Normalize(msg.Text)
	sig := c.extractSignals(msg, normalized)

	switch {
	case sig.HasCommandPrefix:
		return result(domain.IntentCommand, domain.FlowCommand, 1.0, "command_prefix", sig)

	case sig.TicketID != "":
		flow := domain.FlowTeamUpdate
		reason := "ticket_update"
		if bareTicketReference(normalized, sig.TicketID) || matchesAny(normalized, ticketQueryPhrases) {
			flow = domain.FlowStatus
			reason = "ticket_status"
		}
		return result(domain.IntentTicketRef, flow, 0.95, reason, sig)

	case hasActiveDraft:
		return result(domain.IntentContinueDraft, domain.FlowDrafting, 0.9, "active_draft", sig)

	case sig.IncidentLike:
		return result(domain.IntentNewIncident, domain.FlowDrafting, 0.8, "incident_keywords", sig)

	case sig.AsksForStatus:
		return result(domain.IntentStatusQuery, domain.FlowStatus, 0.75, "status_phrase", sig)

	case sig.AsksForHelp:
		return result(domain.IntentHelp, domain.FlowHelp, 0.75, "help_phrase", sig)

	case sig.IsGreeting:
		return result(domain.IntentSmalltalk, domain.FlowSmalltalk, 0.7, "greeting", sig)

	default:
		return result(domain.IntentUnknown, domain.FlowFallback, 0.3, "unclassified", sig)
	}
}

func (c *Classifier) extractSignals(msg domain.InboundMessage, normalized string) domain.IntentSignals {
	tokens := textnorm.Tokenize(normalized)
	_, _, isCmd := ParseCommand(msg.Text)
	sig := domain.IntentSignals{
		HasCommandPrefix: isCmd,
		TicketID:         ExtractFolio(msg.Text, msg.QuotedText),
		WordCount:        len(tokens),
	}
	sig.IsGreeting = isGreeting(normalized, sig.WordCount)
	sig.AsksForHelp = matchesAny(normalized, helpPhrases)
	sig.AsksForStatus = matchesAny(normalized, statusPhrases)
	sig.IncidentLike = c.incidentLike(normalized, sig)
	return sig
}

// incidentLike is deliberately loose: one breakage word or lexicon hint is
// enough, as long as the message is not a bare greeting.
func (c *Classifier) incidentLike(normalized string, sig domain.IntentSignals) bool {
	if sig.IsGreeting || normalized == "" {
		return false
	}
	return matchesAny(normalized, c.incidentVocab)
}

// bareTicketReference is true when the message carries nothing beyond the
// folio itself, which reads as "what happened with this one?". Any extra word
// next to the folio is content and routes to the update flow instead.
func bareTicketReference(normalized, folio string) bool {
	folioTokens := textnorm.Tokenize(folio)
	isFolioToken := func(tok string) bool {
		for _, f := range folioTokens {
			if tok == f {
				return true
			}
		}
		return false
	}
	for _, tok := range textnorm.Tokenize(normalized) {
		if !isFolioToken(tok) {
			return false
		}
	}
	return true
}

func result(it domain.Intent, flow domain.Flow, confidence float64, reason string, sig domain.IntentSignals) domain.IntentResult {
	return domain.IntentResult{
		Intent:     it,
		Flow:       flow,
		Confidence: confidence,
		Reason:     reason,
		Signals:    sig,
	}
}
