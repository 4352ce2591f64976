package storage

import (
	"database/sql"
	"time"

	"incidentbot/internal/domain"
)

// TriageRecord is one audited classification decision. The router writes one
// per routed message; threshold tuning reads them back in aggregate.
type TriageRecord struct {
	ID             int64
	MessageID      string
	ConversationID string
	Intent         domain.Intent
	Flow           domain.Flow
	Confidence     float64
	Reason         string
	PlaceStatus    string
	PlaceID        string
	Department     string
	DeptSource     string
	DeptConfidence float64
	ClassifiedAt   time.Time
}

func InsertTriageRecord(db *sql.DB, r TriageRecord) error {
	_, err := db.Exec(
		`INSERT INTO triage_audit
		 (message_id, conversation_id, intent, flow, confidence, reason,
		  place_status, place_id, department, dept_source, dept_confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MessageID, r.ConversationID, string(r.Intent), string(r.Flow),
		r.Confidence, r.Reason, r.PlaceStatus, r.PlaceID,
		r.Department, r.DeptSource, r.DeptConfidence,
	)
	return err
}

// TriageStats summarizes classifier behavior since a cutoff, bucketed by
// confidence the same way the thresholds are tuned.
type TriageStats struct {
	Total         int
	AvgConfidence float64
	BucketBelow50 int
	Bucket50to70  int
	Bucket70to90  int
	Bucket90Plus  int
	SemanticDepts int
}

func GetTriageStats(db *sql.DB, since time.Time) (TriageStats, error) {
	var s TriageStats
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0),
		        COALESCE(SUM(CASE WHEN confidence < 0.50 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 0.50 AND confidence < 0.70 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 0.70 AND confidence < 0.90 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 0.90 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN dept_source = 'semantic' THEN 1 ELSE 0 END), 0)
		 FROM triage_audit WHERE classified_at >= ?`,
		since,
	).Scan(&s.Total, &s.AvgConfidence,
		&s.BucketBelow50, &s.Bucket50to70, &s.Bucket70to90, &s.Bucket90Plus,
		&s.SemanticDepts)
	return s, err
}

// IntentBreakdown counts routed intents since a cutoff, most frequent first.
type IntentCount struct {
	Intent domain.Intent
	Count  int
}

func GetIntentBreakdown(db *sql.DB, since time.Time) ([]IntentCount, error) {
	rows, err := db.Query(
		`SELECT intent, COUNT(*) as cnt FROM triage_audit
		 WHERE classified_at >= ?
		 GROUP BY intent ORDER BY cnt DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IntentCount
	for rows.Next() {
		var ic IntentCount
		var intent string
		if err := rows.Scan(&intent, &ic.Count); err != nil {
			return nil, err
		}
		ic.Intent = domain.Intent(intent)
		out = append(out, ic)
	}
	return out, rows.Err()
}
