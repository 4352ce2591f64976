package router

import (
	"context"
	"errors"
	"log"

	"incidentbot/internal/access"
	"incidentbot/internal/domain"
	"incidentbot/internal/incident"
	"incidentbot/internal/textnorm"
)

var affirmatives = []string{
	"si", "confirmo", "confirmar", "ok", "dale", "correcto", "asi es",
	"de acuerdo", "va", "sale", "claro",
}

var negatives = []string{
	"no", "cancelar", "cancela", "cancelalo", "mejor no", "olvidalo", "ya no",
}

func matchesShortReply(text string, options []string) bool {
	normalized := textnorm.Normalize(text)
	for _, opt := range options {
		if normalized == opt {
			return true
		}
	}
	return false
}

func (r *Router) handleDrafting(ctx context.Context, msg domain.InboundMessage, decision access.Decision) domain.Reply {
	id := msg.ConversationID
	d, ok := r.drafts.Active(id)
	if !ok {
		if !decision.MayCreate {
			return domain.Reply{Kind: domain.ReplyDenied, Reason: "may_not_create"}
		}
		d = r.drafts.Create(id)
	}

	r.drafts.AppendHistory(id, "user", msg.Text)
	reply := r.draftTurn(ctx, msg, d)
	r.drafts.AppendHistory(id, "bot", string(reply.Kind))
	return reply
}

// draftTurn merges one message into the draft according to the current mode,
// then advances toward preview.
func (r *Router) draftTurn(ctx context.Context, msg domain.InboundMessage, d *domain.Draft) domain.Reply {
	id := d.ConversationID

	// An outstanding zone prompt absorbs the whole turn.
	if d.PendingZone != "" {
		res := r.resolver.ResolveZoneReply(d.PendingZone, msg.Text)
		if !res.Resolved() {
			return domain.Reply{
				Kind:        domain.ReplyDisambiguate,
				Reason:      "retry",
				Draft:       d,
				ZonePrompt:  res.ZonePrompt,
				ZoneOptions: res.ZoneOptions,
			}
		}
		r.drafts.SetPlace(id, res.Entry)
		r.drafts.SetPendingZone(id, "")
		return r.advance(ctx, msg, d)
	}

	switch d.Mode {
	case domain.ModePreview, domain.ModeConfirm:
		if matchesShortReply(msg.Text, affirmatives) {
			r.drafts.SetMode(id, domain.ModeConfirm)
			return r.finalize(msg, d)
		}
		if matchesShortReply(msg.Text, negatives) {
			r.drafts.Close(id)
			return domain.Reply{Kind: domain.ReplyCancelled, Reason: "user_declined"}
		}
		return r.amendPreview(ctx, msg, d)

	case domain.ModeAskPlace:
		return r.absorbPlaceAnswer(ctx, msg, d)

	case domain.ModeAskArea:
		return r.absorbAreaAnswer(ctx, msg, d)

	default:
		if !r.drafts.HasUsableDescription(d) {
			r.drafts.SetDescription(id, msg.Text, textnorm.Normalize(msg.Text))
		} else {
			r.drafts.AddNote(id, msg.Text)
		}
		return r.advance(ctx, msg, d)
	}
}

// absorbPlaceAnswer treats the message as the answer to "which place?".
func (r *Router) absorbPlaceAnswer(ctx context.Context, msg domain.InboundMessage, d *domain.Draft) domain.Reply {
	id := d.ConversationID
	res := r.resolver.Resolve(ctx, msg.Text)
	switch res.Status {
	case domain.PlaceResolved:
		r.drafts.SetPlace(id, res.Entry)
		return r.advance(ctx, msg, d)
	case domain.PlaceNeedsZone:
		r.drafts.SetPendingZone(id, res.ZoneKey)
		return domain.Reply{
			Kind:        domain.ReplyDisambiguate,
			Draft:       d,
			ZonePrompt:  res.ZonePrompt,
			ZoneOptions: res.ZoneOptions,
		}
	case domain.PlaceAmbiguous:
		return domain.Reply{
			Kind:       domain.ReplyAskPlace,
			Reason:     string(res.Status),
			Draft:      d,
			Candidates: res.Candidates,
		}
	default:
		return domain.Reply{
			Kind:       domain.ReplyAskPlace,
			Reason:     string(res.Status),
			Draft:      d,
			Candidates: res.Candidates,
		}
	}
}

// absorbAreaAnswer treats the message as the answer to "which department?".
func (r *Router) absorbAreaAnswer(ctx context.Context, msg domain.InboundMessage, d *domain.Draft) domain.Reply {
	id := d.ConversationID
	res := r.detector.Detect(ctx, msg.Text)
	if res.Decided() {
		r.drafts.SetDepartment(id, res.Department, res.Source, res.Confidence)
		return r.advance(ctx, msg, d)
	}
	return domain.Reply{
		Kind:        domain.ReplyAskArea,
		Reason:      "retry",
		Draft:       d,
		Departments: res.Alternatives,
	}
}

// amendPreview lets the user adjust a previewed draft instead of confirming:
// a place phrase re-resolves the place, a department name re-assigns it,
// anything else lands as a note.
func (r *Router) amendPreview(ctx context.Context, msg domain.InboundMessage, d *domain.Draft) domain.Reply {
	id := d.ConversationID
	if res := r.resolver.Resolve(ctx, msg.Text); res.Resolved() {
		r.drafts.SetPlace(id, res.Entry)
		return r.advance(ctx, msg, d)
	}
	if res := r.detector.Detect(ctx, msg.Text); res.Decided() && res.Source == "alias" {
		r.drafts.SetDepartment(id, res.Department, res.Source, res.Confidence)
		return r.advance(ctx, msg, d)
	}
	r.drafts.AddNote(id, msg.Text)
	return r.advance(ctx, msg, d)
}

// advance inspects completeness and decides the next ask: description, then
// place, then department, then preview.
func (r *Router) advance(ctx context.Context, msg domain.InboundMessage, d *domain.Draft) domain.Reply {
	id := d.ConversationID

	if !r.drafts.HasUsableDescription(d) {
		r.drafts.SetMode(id, domain.ModeNeutral)
		return domain.Reply{Kind: domain.ReplyAskDescription, Draft: d}
	}

	if d.Place == nil {
		res := r.resolver.Resolve(ctx, d.Description)
		switch res.Status {
		case domain.PlaceResolved:
			r.drafts.SetPlace(id, res.Entry)
		case domain.PlaceNeedsZone:
			r.drafts.SetPendingZone(id, res.ZoneKey)
			r.drafts.SetMode(id, domain.ModeAskPlace)
			return domain.Reply{
				Kind:        domain.ReplyDisambiguate,
				Draft:       d,
				ZonePrompt:  res.ZonePrompt,
				ZoneOptions: res.ZoneOptions,
			}
		default:
			r.drafts.SetMode(id, domain.ModeAskPlace)
			r.drafts.MarkAskedForPlace(id)
			return domain.Reply{
				Kind:       domain.ReplyAskPlace,
				Reason:     string(res.Status),
				Draft:      d,
				Candidates: res.Candidates,
			}
		}
	}

	if d.Department == "" {
		res := r.detector.Detect(ctx, d.Description)
		if res.Decided() {
			r.drafts.SetDepartment(id, res.Department, res.Source, res.Confidence)
		} else {
			var candidates []domain.Department
			for _, alt := range res.Alternatives {
				candidates = append(candidates, alt.Department)
			}
			r.drafts.SetCandidateDepts(id, candidates)
			r.drafts.SetMode(id, domain.ModeAskArea)
			r.drafts.MarkAskedForArea(id)
			return domain.Reply{
				Kind:        domain.ReplyAskArea,
				Draft:       d,
				Departments: res.Alternatives,
			}
		}
	}

	r.drafts.SetMode(id, domain.ModePreview)
	return domain.Reply{Kind: domain.ReplyPreview, Draft: d}
}

// finalize hands the completed draft to the incident collaborator and closes
// the conversation's drafting session.
func (r *Router) finalize(msg domain.InboundMessage, d *domain.Draft) domain.Reply {
	inc, err := r.incidents.CreateFromDraft(d, msg.SenderID)
	if err != nil {
		if errors.Is(err, incident.ErrIncomplete) {
			// Confirmed too early; fall back to asking for what is missing.
			return r.advance(context.Background(), msg, d)
		}
		log.Printf("router finalize conv=%s: %v", d.ConversationID, err)
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "create_failed"}
	}
	r.drafts.Close(d.ConversationID)
	// The closed draft rides along so the audit trail keeps the department
	// decision that produced this incident.
	return domain.Reply{Kind: domain.ReplyCreated, Incident: inc, Draft: d}
}
