// Package storage is the sqlite persistence layer: message dedupe, finalized
// incidents, the access directory, and the triage audit trail.
package storage

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	// Write transactions start immediate so concurrent writers queue at BEGIN
	// instead of deadlocking on a lock upgrade mid-transaction; the busy
	// timeout covers the wait.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS processed_messages (
		message_id      TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL DEFAULT '',
		processed_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pm_processed_at ON processed_messages(processed_at);

	CREATE TABLE IF NOT EXISTS incidents (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		folio           TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL DEFAULT '',
		description     TEXT NOT NULL,
		place_id        TEXT DEFAULT '',
		place_label     TEXT DEFAULT '',
		department      TEXT NOT NULL,
		priority        TEXT DEFAULT '',
		severity        TEXT DEFAULT '',
		due_date        TEXT DEFAULT '',
		tags            TEXT DEFAULT '',
		notes           TEXT DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'abierto',
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_department ON incidents(department);
	CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at);

	CREATE TABLE IF NOT EXISTS access_grants (
		conversation_id TEXT NOT NULL,
		sender_id       TEXT NOT NULL DEFAULT '',
		role            TEXT NOT NULL DEFAULT 'staff',
		may_create      INTEGER NOT NULL DEFAULT 1,
		may_update      INTEGER NOT NULL DEFAULT 0,
		granted_by      TEXT DEFAULT '',
		granted_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, sender_id)
	);

	CREATE TABLE IF NOT EXISTS access_requests (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		sender_id       TEXT DEFAULT '',
		message         TEXT DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'pending',
		requested_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		resolved_at     DATETIME,
		resolved_by     TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_ar_status ON access_requests(status);

	CREATE TABLE IF NOT EXISTS triage_audit (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id      TEXT NOT NULL DEFAULT '',
		conversation_id TEXT NOT NULL DEFAULT '',
		intent          TEXT NOT NULL DEFAULT '',
		flow            TEXT NOT NULL DEFAULT '',
		confidence      REAL NOT NULL DEFAULT 0,
		reason          TEXT DEFAULT '',
		place_status    TEXT DEFAULT '',
		place_id        TEXT DEFAULT '',
		department      TEXT DEFAULT '',
		dept_source     TEXT DEFAULT '',
		dept_confidence REAL NOT NULL DEFAULT 0,
		classified_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_ta_conversation ON triage_audit(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_ta_date ON triage_audit(classified_at);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, err
	}

	// Migration: add reporter_id column if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('incidents') WHERE name = 'reporter_id'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE incidents ADD COLUMN reporter_id TEXT DEFAULT ''`)
	}

	return db, nil
}
