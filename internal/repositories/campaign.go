package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/shared"
)

const campaignColumns = `id, sequence, name, mode, dry_run, sent_count, failed_count, created_at, updated_at, finished_at, deleted_at`

// CampaignRepository implements models.Repository[*models.Campaign].
type CampaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new CampaignRepository with the given database connection
func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign with generated ID and sequence
func (r *CampaignRepository) Create(c *models.Campaign) error {
	sequence, err := NextSequence(r.db, "campaigns")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	c.SetID(shared.GenerateID())
	c.SetSequence(sequence)
	c.SetCreatedAt(stamp(c.CreatedAt()))
	c.SetUpdatedAt(stamp(c.UpdatedAt()))

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO campaigns (id, sequence, name, mode, dry_run, sent_count, failed_count, created_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		c.ID(), sequence, c.Name(), string(c.Mode()), c.DryRun(),
		c.SentCount(), c.FailedCount(), c.CreatedAt(), c.UpdatedAt(), nullTime(c.FinishedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

// Get retrieves a campaign by ID, excluding soft-deleted campaigns
func (r *CampaignRepository) Get(id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Latest returns the most recently created campaign.
func (r *CampaignRepository) Latest() (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query))
}

// Update persists counts and completion time
func (r *CampaignRepository) Update(c *models.Campaign) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := stamp(time.Now())
	c.SetUpdatedAt(now)

	query := `
		UPDATE campaigns
		SET sent_count = ?, failed_count = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, c.SentCount(), c.FailedCount(), nullTime(c.FinishedAt()), now, c.ID())
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return requireAffected(result, "campaign", c.ID())
}

// Delete soft-deletes a campaign by ID
func (r *CampaignRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE campaigns SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, stamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return requireAffected(result, "campaign", id)
}

// List retrieves campaigns matching the given criteria, excluding soft-deleted campaigns.
//
// Supported criteria: "mode" (string), "dry_run" (bool).
func (r *CampaignRepository) List(criteria map[string]any) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE deleted_at IS NULL`
	args := []any{}

	if mode, ok := criteria["mode"].(string); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}
	if dryRun, ok := criteria["dry_run"].(bool); ok {
		query += " AND dry_run = ?"
		args = append(args, dryRun)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return campaigns, nil
}

func (r *CampaignRepository) scan(row scanner) (*models.Campaign, error) {
	var (
		id, name, mode         string
		sequence, sent, failed int
		dryRun                 bool
		createdAt, updatedAt   time.Time
		finishedAt, deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &mode, &dryRun, &sent, &failed, &createdAt, &updatedAt, &finishedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: campaign", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	c := models.NewCampaign(sequence, name, models.CampaignMode(mode), dryRun)
	c.SetID(id)
	c.SetCounts(sent, failed)
	c.SetCreatedAt(createdAt)
	c.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		c.Finish(finishedAt.Time)
	}
	if deletedAt.Valid {
		c.SetDeletedAt(&deletedAt.Time)
	}
	return c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: stamp(*t), Valid: true}
}
