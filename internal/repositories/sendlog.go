package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/shared"
)

const sendLogColumns = `id, sequence, campaign_id, email, status, message_id, reason, created_at, updated_at, deleted_at`

// SendLogRepository implements models.Repository[*models.SendRecord].
//
// The log is the source of truth for which addresses were already contacted and how many
// messages went out in the current hour and day.
type SendLogRepository struct {
	db *sql.DB
}

// NewSendLogRepository creates a new SendLogRepository with the given database connection
func NewSendLogRepository(db *sql.DB) *SendLogRepository {
	return &SendLogRepository{db: db}
}

// Create inserts a new send record with generated ID and sequence
func (r *SendLogRepository) Create(rec *models.SendRecord) error {
	sequence, err := NextSequence(r.db, "send_log")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	rec.SetID(shared.GenerateID())
	rec.SetSequence(sequence)
	rec.SetCreatedAt(stamp(rec.CreatedAt()))
	rec.SetUpdatedAt(stamp(rec.UpdatedAt()))

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO send_log (id, sequence, campaign_id, email, status, message_id, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID(), sequence, nullString(rec.CampaignID()), rec.Email(), string(rec.Status()),
		rec.MessageID(), rec.Reason(), rec.CreatedAt(), rec.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert send record: %w", err)
	}
	return nil
}

// Get retrieves a send record by ID, excluding soft-deleted records
func (r *SendLogRepository) Get(id string) (*models.SendRecord, error) {
	query := `SELECT ` + sendLogColumns + ` FROM send_log WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Update persists status, message ID and reason
func (r *SendLogRepository) Update(rec *models.SendRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := stamp(time.Now())
	rec.SetUpdatedAt(now)

	query := `
		UPDATE send_log
		SET status = ?, message_id = ?, reason = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, string(rec.Status()), rec.MessageID(), rec.Reason(), now, rec.ID())
	if err != nil {
		return fmt.Errorf("failed to update send record: %w", err)
	}
	return requireAffected(result, "send record", rec.ID())
}

// Delete soft-deletes a send record by ID
func (r *SendLogRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE send_log SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, stamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete send record: %w", err)
	}
	return requireAffected(result, "send record", id)
}

// List retrieves send records matching the given criteria, oldest first.
//
// Supported criteria: "email" (string), "status" ([models.SendStatus] or string),
// "campaign_id" (string), "since" ([time.Time]).
func (r *SendLogRepository) List(criteria map[string]any) ([]*models.SendRecord, error) {
	query := `SELECT ` + sendLogColumns + ` FROM send_log WHERE deleted_at IS NULL`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, shared.NormalizeEmail(email))
	}

	switch status := criteria["status"].(type) {
	case models.SendStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if campaignID, ok := criteria["campaign_id"].(string); ok && campaignID != "" {
		query += " AND campaign_id = ?"
		args = append(args, campaignID)
	}
	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, stamp(since))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query send log: %w", err)
	}
	defer rows.Close()

	var records []*models.SendRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Processed returns every address with an outcome that excludes it from future campaigns,
// mapped to the most recent such status. A bounce is never superseded.
func (r *SendLogRepository) Processed() (map[string]models.SendStatus, error) {
	rows, err := r.db.Query(`SELECT email, status FROM send_log WHERE deleted_at IS NULL ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query send log: %w", err)
	}
	defer rows.Close()

	processed := make(map[string]models.SendStatus)
	for rows.Next() {
		var email, status string
		if err := rows.Scan(&email, &status); err != nil {
			return nil, fmt.Errorf("failed to scan send record: %w", err)
		}
		if processed[email] == models.StatusBounced {
			continue
		}
		if s := models.SendStatus(status); s.Processed() {
			processed[email] = s
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return processed, nil
}

// CountSince counts records with status created at or after since.
func (r *SendLogRepository) CountSince(status models.SendStatus, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM send_log WHERE deleted_at IS NULL AND status = ? AND created_at >= ?`,
		string(status), stamp(since),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count send log: %w", err)
	}
	return n, nil
}

// LastSentAt returns the time of the most recent sent message. ok is false when nothing was sent.
func (r *SendLogRepository) LastSentAt() (t time.Time, ok bool, err error) {
	var last sql.NullTime
	err = r.db.QueryRow(
		`SELECT created_at FROM send_log WHERE deleted_at IS NULL AND status = ? ORDER BY sequence DESC LIMIT 1`,
		string(models.StatusSent),
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last send: %w", err)
	}
	return last.Time, last.Valid, nil
}

// MarkStatus records status for email outside of a campaign. It is idempotent: when the
// address already has a record with that status, nothing is written and created is false.
func (r *SendLogRepository) MarkStatus(email string, status models.SendStatus, reason string) (created bool, err error) {
	email = shared.NormalizeEmail(email)

	var n int
	err = r.db.QueryRow(
		`SELECT COUNT(*) FROM send_log WHERE deleted_at IS NULL AND email = ? AND status = ?`,
		email, string(status),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query send log: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	rec := models.NewSendRecord(0, "", email, status)
	rec.SetReason(reason)
	if err := r.Create(rec); err != nil {
		return false, err
	}
	return true, nil
}

// MarkBounced records a bounce for email. See [SendLogRepository.MarkStatus].
func (r *SendLogRepository) MarkBounced(email, reason string) (bool, error) {
	return r.MarkStatus(email, models.StatusBounced, reason)
}

// StatusCounts tallies records by status. An empty campaignID counts the whole log.
func (r *SendLogRepository) StatusCounts(campaignID string) (map[models.SendStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM send_log WHERE deleted_at IS NULL`
	args := []any{}
	if campaignID != "" {
		query += " AND campaign_id = ?"
		args = append(args, campaignID)
	}
	query += " GROUP BY status"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count send log: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SendStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.SendStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *SendLogRepository) scan(row scanner) (*models.SendRecord, error) {
	var (
		id, email, status, messageID, reason string
		sequence                             int
		campaignID                           sql.NullString
		createdAt, updatedAt                 time.Time
		deletedAt                            sql.NullTime
	)

	err := row.Scan(&id, &sequence, &campaignID, &email, &status, &messageID, &reason, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: send record", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan send record: %w", err)
	}

	rec := models.NewSendRecord(sequence, campaignID.String, email, models.SendStatus(status))
	rec.SetID(id)
	rec.SetMessageID(messageID)
	rec.SetReason(reason)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
