package storage

import (
	"database/sql"
	"time"
)

// MessageSeen reports whether the transport already delivered this message id.
func MessageSeen(db *sql.DB, messageID string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM processed_messages WHERE message_id = ?`, messageID).Scan(&count)
	return count > 0, err
}

// MarkMessageProcessed records a message id. Redelivered ids are absorbed
// silently so marking stays idempotent.
func MarkMessageProcessed(db *sql.DB, messageID, conversationID string) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO processed_messages (message_id, conversation_id) VALUES (?, ?)`,
		messageID, conversationID,
	)
	return err
}

// PruneProcessedBefore trims the dedupe table; the cron job calls this so the
// table stays bounded to the redelivery window.
func PruneProcessedBefore(db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM processed_messages WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
