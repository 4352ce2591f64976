// Package access is the authorization collaborator: it decides, per
// conversation and sender, whether a message may reach the drafting flows and
// with what capabilities.
package access

import (
	"database/sql"
	"fmt"

	"incidentbot/internal/config"
	"incidentbot/internal/storage"
)

// Decision is the gate's answer for one inbound message.
type Decision struct {
	Allowed   bool
	Role      string
	MayCreate bool
	MayUpdate bool
}

type Gate struct {
	cfg config.Config
	db  *sql.DB
}

func NewGate(cfg config.Config, db *sql.DB) *Gate {
	return &Gate{cfg: cfg, db: db}
}

// Check resolves the effective permissions. Configured admin conversations
// bypass the directory; everyone else needs a grant row.
func (g *Gate) Check(conversationID, senderID string) (Decision, error) {
	if g.cfg.IsAdminConversation(conversationID) {
		return Decision{Allowed: true, Role: "admin", MayCreate: true, MayUpdate: true}, nil
	}
	grant, ok, err := storage.GetGrant(g.db, conversationID, senderID)
	if err != nil {
		return Decision{}, fmt.Errorf("access lookup: %w", err)
	}
	if !ok {
		return Decision{}, nil
	}
	return Decision{
		Allowed:   true,
		Role:      grant.Role,
		MayCreate: grant.MayCreate,
		MayUpdate: grant.MayUpdate,
	}, nil
}

// RequestAccess files a pending access request for an unauthorized
// conversation, at most one outstanding per sender.
func (g *Gate) RequestAccess(conversationID, senderID, message string) (alreadyPending bool, err error) {
	pending, err := storage.HasPendingAccessRequest(g.db, conversationID, senderID)
	if err != nil {
		return false, fmt.Errorf("access request lookup: %w", err)
	}
	if pending {
		return true, nil
	}
	if err := storage.InsertAccessRequest(g.db, conversationID, senderID, message); err != nil {
		return false, fmt.Errorf("access request insert: %w", err)
	}
	return false, nil
}
