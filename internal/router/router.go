// Package router is the single entry point per inbound message: dedupe,
// access gating, intent classification, and dispatch into the drafting,
// status, update, and smalltalk flows.
package router

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"incidentbot/internal/access"
	"incidentbot/internal/areas"
	"incidentbot/internal/config"
	"incidentbot/internal/domain"
	"incidentbot/internal/intent"
	"incidentbot/internal/places"
	"incidentbot/internal/session"
	"incidentbot/internal/storage"
)

// Authorizer is the access-control collaborator.
type Authorizer interface {
	Check(conversationID, senderID string) (access.Decision, error)
	RequestAccess(conversationID, senderID, message string) (alreadyPending bool, err error)
}

// IncidentService finalizes drafts and serves folio lookups and updates.
type IncidentService interface {
	CreateFromDraft(d *domain.Draft, reporterID string) (*domain.Incident, error)
	Lookup(folio string) (*domain.Incident, error)
	Update(folio, rawStatus, note string) (*domain.Incident, error)
	OpenForConversation(conversationID string, limit int) ([]domain.Incident, error)
}

type Router struct {
	cfg        config.Config
	db         *sql.DB
	drafts     *session.Store
	classifier *intent.Classifier
	resolver   *places.Resolver
	detector   *areas.Detector
	gate       Authorizer
	incidents  IncidentService
	now        func() time.Time

	dedupeMu sync.Mutex
	dedupe   map[string]time.Time
}

func New(
	cfg config.Config,
	db *sql.DB,
	drafts *session.Store,
	classifier *intent.Classifier,
	resolver *places.Resolver,
	detector *areas.Detector,
	gate Authorizer,
	incidents IncidentService,
	now func() time.Time,
) *Router {
	if now == nil {
		now = time.Now
	}
	return &Router{
		cfg:        cfg,
		db:         db,
		drafts:     drafts,
		classifier: classifier,
		resolver:   resolver,
		detector:   detector,
		gate:       gate,
		incidents:  incidents,
		now:        now,
		dedupe:     make(map[string]time.Time),
	}
}

// Handle routes one inbound message to a structured reply. It never panics
// and never returns an error: every failure degrades to a fallback reply so
// the conversation cannot hang.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) (reply domain.Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("router panic conv=%s msg=%s: %v", msg.ConversationID, msg.MessageID, rec)
			reply = domain.Reply{Kind: domain.ReplyFallback, Reason: "internal_error"}
		}
	}()

	unlock := r.drafts.LockConversation(msg.ConversationID)
	defer unlock()

	if r.seenBefore(msg.MessageID) {
		return domain.Reply{Kind: domain.ReplyDuplicate, Reason: "redelivered"}
	}

	decision, err := r.gate.Check(msg.ConversationID, msg.SenderID)
	if err != nil {
		log.Printf("router access check conv=%s: %v", msg.ConversationID, err)
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "access_error"}
	}
	if !decision.Allowed {
		return r.handleAccessRequest(msg)
	}

	res := r.classifier.Classify(msg, r.hasActiveDraft(msg.ConversationID))
	reply = r.dispatch(ctx, msg, res, decision)

	r.markProcessed(msg)
	r.audit(msg, res, reply)
	return reply
}

func (r *Router) dispatch(ctx context.Context, msg domain.InboundMessage, res domain.IntentResult, decision access.Decision) domain.Reply {
	switch res.Flow {
	case domain.FlowCommand:
		return r.handleCommand(ctx, msg, decision)
	case domain.FlowDrafting:
		return r.handleDrafting(ctx, msg, decision)
	case domain.FlowStatus:
		return r.handleStatus(msg, res.Signals.TicketID)
	case domain.FlowTeamUpdate:
		return r.handleTeamUpdate(msg, res.Signals.TicketID, decision)
	case domain.FlowHelp:
		return domain.Reply{Kind: domain.ReplyHelp}
	case domain.FlowSmalltalk:
		return domain.Reply{Kind: domain.ReplySmalltalk, Reason: res.Reason}
	default:
		return domain.Reply{Kind: domain.ReplyFallback, Reason: res.Reason}
	}
}

func (r *Router) hasActiveDraft(conversationID string) bool {
	_, ok := r.drafts.Active(conversationID)
	return ok
}

// seenBefore consults the short-TTL in-memory set first, then the persistent
// table, since the transport may redeliver across restarts.
func (r *Router) seenBefore(messageID string) bool {
	if messageID == "" {
		return false
	}
	now := r.now()
	r.dedupeMu.Lock()
	if at, ok := r.dedupe[messageID]; ok {
		if now.Sub(at) <= r.cfg.DedupeTTL() {
			r.dedupeMu.Unlock()
			return true
		}
		delete(r.dedupe, messageID)
	}
	r.dedupeMu.Unlock()

	seen, err := storage.MessageSeen(r.db, messageID)
	if err != nil {
		log.Printf("router dedupe lookup msg=%s: %v (non-fatal)", messageID, err)
		return false
	}
	return seen
}

func (r *Router) markProcessed(msg domain.InboundMessage) {
	if msg.MessageID == "" {
		return
	}
	r.dedupeMu.Lock()
	r.dedupe[msg.MessageID] = r.now()
	r.dedupeMu.Unlock()
	if err := storage.MarkMessageProcessed(r.db, msg.MessageID, msg.ConversationID); err != nil {
		log.Printf("router dedupe mark msg=%s: %v (non-fatal)", msg.MessageID, err)
	}
}

// PruneDedupe drops expired in-memory entries and trims the persistent table.
// The cron scheduler calls this periodically.
func (r *Router) PruneDedupe() {
	cutoff := r.now().Add(-r.cfg.DedupeTTL())
	r.dedupeMu.Lock()
	for id, at := range r.dedupe {
		if at.Before(cutoff) {
			delete(r.dedupe, id)
		}
	}
	r.dedupeMu.Unlock()
	if n, err := storage.PruneProcessedBefore(r.db, cutoff); err != nil {
		log.Printf("router dedupe prune: %v (non-fatal)", err)
	} else if n > 0 {
		log.Printf("router dedupe pruned rows=%d", n)
	}
}

func (r *Router) handleAccessRequest(msg domain.InboundMessage) domain.Reply {
	pending, err := r.gate.RequestAccess(msg.ConversationID, msg.SenderID, msg.Text)
	if err != nil {
		log.Printf("router access request conv=%s: %v", msg.ConversationID, err)
		return domain.Reply{Kind: domain.ReplyFallback, Reason: "access_error"}
	}
	if pending {
		return domain.Reply{Kind: domain.ReplyAccessPending, Reason: "already_pending"}
	}
	return domain.Reply{Kind: domain.ReplyAccessPending, Reason: "request_filed"}
}

func (r *Router) audit(msg domain.InboundMessage, res domain.IntentResult, reply domain.Reply) {
	rec := storage.TriageRecord{
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
		Intent:         res.Intent,
		Flow:           res.Flow,
		Confidence:     res.Confidence,
		Reason:         res.Reason,
	}
	// The live draft carries the decision trail; a just-finalized one arrives
	// on the reply instead, since finalize closes the store entry.
	d, ok := r.drafts.Active(msg.ConversationID)
	if !ok {
		d = reply.Draft
	}
	if d != nil {
		if d.Place != nil {
			rec.PlaceStatus = string(domain.PlaceResolved)
			rec.PlaceID = d.Place.ID
		}
		rec.Department = string(d.Department)
		rec.DeptSource = d.DeptSource
		rec.DeptConfidence = d.DeptConfidence
	}
	if reply.Incident != nil {
		rec.PlaceID = reply.Incident.PlaceID
		rec.Department = string(reply.Incident.Department)
	}
	if err := storage.InsertTriageRecord(r.db, rec); err != nil {
		log.Printf("router audit msg=%s: %v (non-fatal)", msg.MessageID, err)
	}
}
