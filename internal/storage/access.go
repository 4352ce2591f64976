package storage

import (
	"database/sql"
	"errors"
	"time"
)

// Grant is one row of the access directory. An empty SenderID means the grant
// covers the whole conversation (every sender in a group chat).
type Grant struct {
	ConversationID string
	SenderID       string
	Role           string
	MayCreate      bool
	MayUpdate      bool
	GrantedBy      string
	GrantedAt      time.Time
}

// GetGrant resolves the effective grant: the sender-specific row wins, then
// the conversation-wide row. ok=false means no grant at all.
func GetGrant(db *sql.DB, conversationID, senderID string) (Grant, bool, error) {
	g, err := getGrantRow(db, conversationID, senderID)
	if err == nil {
		return g, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Grant{}, false, err
	}
	if senderID != "" {
		g, err = getGrantRow(db, conversationID, "")
		if err == nil {
			return g, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Grant{}, false, err
		}
	}
	return Grant{}, false, nil
}

func getGrantRow(db *sql.DB, conversationID, senderID string) (Grant, error) {
	var g Grant
	var mayCreate, mayUpdate int
	err := db.QueryRow(
		`SELECT conversation_id, sender_id, role, may_create, may_update, granted_by, granted_at
		 FROM access_grants WHERE conversation_id = ? AND sender_id = ?`,
		conversationID, senderID,
	).Scan(&g.ConversationID, &g.SenderID, &g.Role, &mayCreate, &mayUpdate, &g.GrantedBy, &g.GrantedAt)
	g.MayCreate = mayCreate != 0
	g.MayUpdate = mayUpdate != 0
	return g, err
}

func UpsertGrant(db *sql.DB, g Grant) error {
	mayCreate, mayUpdate := 0, 0
	if g.MayCreate {
		mayCreate = 1
	}
	if g.MayUpdate {
		mayUpdate = 1
	}
	_, err := db.Exec(
		`INSERT INTO access_grants (conversation_id, sender_id, role, may_create, may_update, granted_by)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, sender_id) DO UPDATE SET
		   role = excluded.role, may_create = excluded.may_create,
		   may_update = excluded.may_update, granted_by = excluded.granted_by`,
		g.ConversationID, g.SenderID, g.Role, mayCreate, mayUpdate, g.GrantedBy,
	)
	return err
}

func RevokeGrant(db *sql.DB, conversationID, senderID string) error {
	_, err := db.Exec(
		`DELETE FROM access_grants WHERE conversation_id = ? AND sender_id = ?`,
		conversationID, senderID,
	)
	return err
}

// HasPendingAccessRequest keeps unauthorized conversations from piling up
// duplicate requests while an admin decides.
func HasPendingAccessRequest(db *sql.DB, conversationID, senderID string) (bool, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM access_requests
		 WHERE conversation_id = ? AND sender_id = ? AND status = 'pending'`,
		conversationID, senderID,
	).Scan(&count)
	return count > 0, err
}

func InsertAccessRequest(db *sql.DB, conversationID, senderID, message string) error {
	_, err := db.Exec(
		`INSERT INTO access_requests (conversation_id, sender_id, message) VALUES (?, ?, ?)`,
		conversationID, senderID, message,
	)
	return err
}

type AccessRequest struct {
	ID             int64
	ConversationID string
	SenderID       string
	Message        string
	Status         string
	RequestedAt    time.Time
}

func ListPendingAccessRequests(db *sql.DB) ([]AccessRequest, error) {
	rows, err := db.Query(
		`SELECT id, conversation_id, sender_id, message, status, requested_at
		 FROM access_requests WHERE status = 'pending' ORDER BY requested_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessRequest
	for rows.Next() {
		var r AccessRequest
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.SenderID, &r.Message, &r.Status, &r.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResolveAccessRequest marks a request approved or rejected; approval also
// writes the grant so the next message from that conversation goes through.
func ResolveAccessRequest(db *sql.DB, id int64, approve bool, resolvedBy string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var r AccessRequest
	err = tx.QueryRow(
		`SELECT id, conversation_id, sender_id FROM access_requests WHERE id = ? AND status = 'pending'`,
		id,
	).Scan(&r.ID, &r.ConversationID, &r.SenderID)
	if err != nil {
		return err
	}

	status := "rejected"
	if approve {
		status = "approved"
		if _, err := tx.Exec(
			`INSERT INTO access_grants (conversation_id, sender_id, role, may_create, may_update, granted_by)
			 VALUES (?, ?, 'staff', 1, 0, ?)
			 ON CONFLICT(conversation_id, sender_id) DO NOTHING`,
			r.ConversationID, r.SenderID, resolvedBy,
		); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`UPDATE access_requests SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ?`,
		status, time.Now(), resolvedBy, id,
	); err != nil {
		return err
	}
	return tx.Commit()
}
