package router

import (
	"context"
	"errors"
	"log"
	"strings"

	"incidentbot/internal/access"
	"incidentbot/internal/domain"
	"incidentbot/internal/incident"
	"incidentbot/internal/intent"
	"incidentbot/internal/textnorm"
)

// Colloquial team phrasing that NormalizeIncidentStatus does not cover.
var statusColloquialisms = map[string]domain.IncidentStatus{
	"ya quedo":       domain.StatusResolved,
	"quedo listo":    domain.StatusResolved,
	"ya esta":        domain.StatusResolved,
	"arreglado":      domain.StatusResolved,
	"reparado":       domain.StatusResolved,
	"en camino":      domain.StatusInProgress,
	"trabajando":     domain.StatusInProgress,
	"revisando":      domain.StatusInProgress,
	"se cierra":      domain.StatusClosed,
	"no procede":     domain.StatusClosed,
	"reabierto":      domain.StatusOpen,
	"sigue igual":    domain.StatusOpen,
	"sigue fallando": domain.StatusOpen,
}

func (r *Router) handleCommand(ctx context.Context, msg domain.InboundMessage, decision access.Decision) domain.Reply {
	cmd, arg, ok := intent.ParseCommand(msg.Text)
	if !ok {
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "bad_command"}
	}

	id := msg.ConversationID
	switch cmd {
	case intent.CmdCancel:
		if _, active := r.drafts.Active(id); !active {
			return domain.Reply{Kind: domain.ReplyFallback, Reason: "no_draft"}
		}
		r.drafts.Close(id)
		return domain.Reply{Kind: domain.ReplyCancelled, Reason: "command"}

	case intent.CmdNew:
		if !decision.MayCreate {
			return domain.Reply{Kind: domain.ReplyDenied, Reason: "may_not_create"}
		}
		r.drafts.Close(id)
		d := r.drafts.Create(id)
		if arg == "" {
			return domain.Reply{Kind: domain.ReplyAskDescription, Draft: d}
		}
		turn := msg
		turn.Text = arg
		r.drafts.AppendHistory(id, "user", arg)
		reply := r.draftTurn(ctx, turn, d)
		r.drafts.AppendHistory(id, "bot", string(reply.Kind))
		return reply

	case intent.CmdConfirm:
		d, active := r.drafts.Active(id)
		if !active || (d.Mode != domain.ModePreview && d.Mode != domain.ModeConfirm) {
			return domain.Reply{Kind: domain.ReplyFallback, Reason: "nothing_to_confirm"}
		}
		return r.finalize(msg, d)

	case intent.CmdStatus:
		return r.handleStatus(msg, intent.ExtractFolio(arg, ""))

	case intent.CmdHelp:
		return domain.Reply{Kind: domain.ReplyHelp}
	}
	return domain.Reply{Kind: domain.ReplyFallback, Reason: "bad_command"}
}

// handleStatus answers "how is it going": by folio when one is present, else
// by the conversation's most recent open incident.
func (r *Router) handleStatus(msg domain.InboundMessage, folio string) domain.Reply {
	if folio == "" {
		folio = intent.ExtractFolio(msg.Text, msg.QuotedText)
	}
	if folio != "" {
		inc, err := r.incidents.Lookup(folio)
		if errors.Is(err, incident.ErrNotFound) {
			return domain.Reply{Kind: domain.ReplyFallback, Reason: "unknown_folio"}
		}
		if err != nil {
			log.Printf("router status folio=%s: %v", folio, err)
			return domain.Reply{Kind: domain.ReplyFallback, Reason: "lookup_failed"}
		}
		return domain.Reply{Kind: domain.ReplyStatus, Incident: inc}
	}

	open, err := r.incidents.OpenForConversation(msg.ConversationID, 1)
	if err != nil {
		log.Printf("router status conv=%s: %v", msg.ConversationID, err)
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "lookup_failed"}
	}
	if len(open) == 0 {
		return domain.Reply{Kind: domain.ReplyStatus, Reason: "no_open_incidents"}
	}
	return domain.Reply{Kind: domain.ReplyStatus, Incident: &open[0]}
}

// handleTeamUpdate applies a folio-tagged message from a resolving team:
// recognized status phrasing moves the lifecycle, and the message text lands
// as a note either way.
func (r *Router) handleTeamUpdate(msg domain.InboundMessage, folio string, decision access.Decision) domain.Reply {
	if !decision.MayUpdate {
		return domain.Reply{Kind: domain.ReplyDenied, Reason: "may_not_update"}
	}

	status := extractStatusPhrase(msg.Text)
	if status == "" {
		// Note-only update: keep the current status.
		cur, err := r.incidents.Lookup(folio)
		if errors.Is(err, incident.ErrNotFound) {
			return domain.Reply{Kind: domain.ReplyFallback, Reason: "unknown_folio"}
		}
		if err != nil {
			log.Printf("router update folio=%s: %v", folio, err)
			return domain.Reply{Kind: domain.ReplyFallback, Reason: "lookup_failed"}
		}
		status = cur.Status
	}

	inc, err := r.incidents.Update(folio, string(status), msg.Text)
	if errors.Is(err, incident.ErrNotFound) {
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "unknown_folio"}
	}
	if err != nil {
		log.Printf("router update folio=%s: %v", folio, err)
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "update_failed"}
	}
	return domain.Reply{Kind: domain.ReplyUpdated, Incident: inc}
}

// extractStatusPhrase scans normalized unigrams and bigrams for lifecycle
// phrasing, colloquialisms first.
func extractStatusPhrase(text string) domain.IncidentStatus {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return ""
	}
	for phrase, status := range statusColloquialisms {
		if strings.Contains(" "+normalized+" ", " "+phrase+" ") {
			return status
		}
	}
	tokens := textnorm.Tokenize(normalized)
	for i := range tokens {
		if i+1 < len(tokens) {
			if s := domain.NormalizeIncidentStatus(tokens[i] + " " + tokens[i+1]); s != "" {
				return s
			}
		}
		if s := domain.NormalizeIncidentStatus(tokens[i]); s != "" {
			return s
		}
	}
	return ""
}
