package storage

import (
	"database/sql"
	"fmt"
	"time"

	"incidentbot/internal/domain"
)

// InsertIncident persists a finalized draft, assigning the next folio for the
// year inside the insert transaction. The transaction is immediate (see
// InitDB), so concurrent creates serialize at BEGIN and each one counts the
// rows of every committed predecessor; incidents are never deleted, which
// keeps the count monotonic.
func InsertIncident(db *sql.DB, inc *domain.Incident) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now()
	}
	prefix := fmt.Sprintf("INC-%d-", inc.CreatedAt.Year())
	var seq int
	err = tx.QueryRow(`SELECT COUNT(*) FROM incidents WHERE folio LIKE ?`, prefix+"%").Scan(&seq)
	if err != nil {
		return err
	}
	inc.Folio = fmt.Sprintf("%s%04d", prefix, seq+1)

	res, err := tx.Exec(
		`INSERT INTO incidents
		 (folio, conversation_id, reporter_id, description, place_id, place_label,
		  department, priority, severity, due_date, tags, notes, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.Folio, inc.ConversationID, inc.ReporterID, inc.Description,
		inc.PlaceID, inc.PlaceLabel, string(inc.Department),
		inc.Priority, inc.Severity, inc.DueDate, inc.Tags, inc.Notes,
		string(domain.StatusOpen), inc.CreatedAt, inc.CreatedAt,
	)
	if err != nil {
		return err
	}
	inc.ID, _ = res.LastInsertId()
	inc.Status = domain.StatusOpen
	inc.UpdatedAt = inc.CreatedAt
	return tx.Commit()
}

func scanIncident(row interface{ Scan(...any) error }) (domain.Incident, error) {
	var inc domain.Incident
	var dept, status string
	err := row.Scan(
		&inc.ID, &inc.Folio, &inc.ConversationID, &inc.ReporterID, &inc.Description,
		&inc.PlaceID, &inc.PlaceLabel, &dept, &inc.Priority, &inc.Severity,
		&inc.DueDate, &inc.Tags, &inc.Notes, &status, &inc.CreatedAt, &inc.UpdatedAt,
	)
	inc.Department = domain.Department(dept)
	inc.Status = domain.IncidentStatus(status)
	return inc, err
}

const incidentColumns = `id, folio, conversation_id, reporter_id, description,
	place_id, place_label, department, priority, severity,
	due_date, tags, notes, status, created_at, updated_at`

// GetIncidentByFolio looks up one incident; sql.ErrNoRows for unknown folios.
func GetIncidentByFolio(db *sql.DB, folio string) (domain.Incident, error) {
	return scanIncident(db.QueryRow(
		`SELECT `+incidentColumns+` FROM incidents WHERE folio = ?`, folio,
	))
}

// UpdateIncidentStatus moves an incident through its lifecycle, optionally
// appending a note from the resolving team.
func UpdateIncidentStatus(db *sql.DB, folio string, status domain.IncidentStatus, note string) error {
	now := time.Now()
	if note != "" {
		_, err := db.Exec(
			`UPDATE incidents
			 SET status = ?, notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END, updated_at = ?
			 WHERE folio = ?`,
			string(status), note, note, now, folio,
		)
		return err
	}
	_, err := db.Exec(
		`UPDATE incidents SET status = ?, updated_at = ? WHERE folio = ?`,
		string(status), now, folio,
	)
	return err
}

// ListIncidentsByDateRange feeds the weekly export: [from, to), ordered for
// stable spreadsheets.
func ListIncidentsByDateRange(db *sql.DB, from, to time.Time) ([]domain.Incident, error) {
	rows, err := db.Query(
		`SELECT `+incidentColumns+`
		 FROM incidents WHERE created_at >= ? AND created_at < ?
		 ORDER BY department, created_at, id`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ListOpenIncidentsByConversation backs bare status queries with no folio:
// "how is my report going".
func ListOpenIncidentsByConversation(db *sql.DB, conversationID string, limit int) ([]domain.Incident, error) {
	rows, err := db.Query(
		`SELECT `+incidentColumns+`
		 FROM incidents
		 WHERE conversation_id = ? AND status NOT IN ('resuelto', 'cerrado')
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
