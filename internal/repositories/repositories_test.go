package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "send_log")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestCampaignRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCampaignRepository(db)
		c := models.NewCampaign(0, "spring single", models.ModeSend, true)
		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create campaign: %v", err)
		}
		if c.ID() == "" || c.Sequence() != 1 {
			t.Errorf("expected id and sequence 1, got %q/%d", c.ID(), c.Sequence())
		}

		got, err := repo.Get(c.ID())
		if err != nil {
			t.Fatalf("failed to get campaign: %v", err)
		}
		if got.Name() != "spring single" || got.Mode() != models.ModeSend || !got.DryRun() {
			t.Errorf("unexpected campaign: name=%q mode=%q dry=%v", got.Name(), got.Mode(), got.DryRun())
		}
		if got.FinishedAt() != nil {
			t.Error("new campaign should not be finished")
		}
	})

	t.Run("Update Counts And Finish", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCampaignRepository(db)
		c := models.NewCampaign(0, "drafts", models.ModeDraft, false)
		if err := repo.Create(c); err != nil {
			t.Fatal(err)
		}

		c.SetCounts(12, 2)
		c.Finish(time.Now())
		if err := repo.Update(c); err != nil {
			t.Fatalf("failed to update campaign: %v", err)
		}

		got, err := repo.Latest()
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if got.SentCount() != 12 || got.FailedCount() != 2 || got.FinishedAt() == nil {
			t.Errorf("counts not persisted: sent=%d failed=%d finished=%v", got.SentCount(), got.FailedCount(), got.FinishedAt())
		}
	})

	t.Run("Latest Prefers Newest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCampaignRepository(db)
		for _, name := range []string{"first", "second"} {
			if err := repo.Create(models.NewCampaign(0, name, models.ModeDraft, false)); err != nil {
				t.Fatal(err)
			}
		}

		got, err := repo.Latest()
		if err != nil {
			t.Fatal(err)
		}
		if got.Name() != "second" {
			t.Errorf("Latest() = %q, want second", got.Name())
		}
	})

	t.Run("List Filters And Excludes Deleted", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCampaignRepository(db)
		send := models.NewCampaign(0, "send", models.ModeSend, false)
		draft := models.NewCampaign(0, "draft", models.ModeDraft, false)
		gone := models.NewCampaign(0, "gone", models.ModeSend, false)
		for _, c := range []*models.Campaign{send, draft, gone} {
			if err := repo.Create(c); err != nil {
				t.Fatal(err)
			}
		}
		if err := repo.Delete(gone.ID()); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 campaigns, got %d", len(all))
		}

		sends, err := repo.List(map[string]any{"mode": "send"})
		if err != nil {
			t.Fatal(err)
		}
		if len(sends) != 1 || sends[0].Name() != "send" {
			t.Errorf("expected only the send campaign, got %d", len(sends))
		}
	})

	t.Run("Errors", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		repo := NewCampaignRepository(db)

		if err := repo.Create(models.NewCampaign(0, "", models.ModeSend, false)); err == nil {
			t.Error("expected validation error for empty name")
		}
		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
		if _, err := repo.Latest(); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound on empty table, got %v", err)
		}
		if err := repo.Delete("nonexistent-id"); err == nil {
			t.Error("expected error deleting nonexistent campaign")
		}

		c := models.NewCampaign(0, "x", models.ModeSend, false)
		c.SetID("nonexistent-id")
		if err := repo.Update(c); err == nil {
			t.Error("expected error updating nonexistent campaign")
		}
	})
}

func TestSendLogRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		campaigns := NewCampaignRepository(db)
		c := models.NewCampaign(0, "run", models.ModeSend, false)
		if err := campaigns.Create(c); err != nil {
			t.Fatal(err)
		}

		repo := NewSendLogRepository(db)
		rec := models.NewSendRecord(0, c.ID(), " Jane@Example.com ", models.StatusSent)
		rec.SetMessageID("msg-1")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create send record: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get send record: %v", err)
		}
		if got.Email() != "jane@example.com" || got.CampaignID() != c.ID() || got.MessageID() != "msg-1" {
			t.Errorf("unexpected record: email=%q campaign=%q msg=%q", got.Email(), got.CampaignID(), got.MessageID())
		}
	})

	t.Run("Unknown Campaign Violates Foreign Key", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSendLogRepository(db)
		if err := repo.Create(models.NewSendRecord(0, "no-such-campaign", "a@example.com", models.StatusSent)); err == nil {
			t.Error("expected foreign key error")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSendLogRepository(db)
		rec := models.NewSendRecord(0, "", "a@example.com", models.StatusSent)
		if err := repo.Create(rec); err != nil {
			t.Fatal(err)
		}

		rec.SetStatus(models.StatusBounced)
		rec.SetReason("Mailbox full")
		if err := repo.Update(rec); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatal(err)
		}
		if got.Status() != models.StatusBounced || got.Reason() != "Mailbox full" {
			t.Errorf("update not persisted: %q %q", got.Status(), got.Reason())
		}
	})

	t.Run("Processed", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSendLogRepository(db)
		seed := []struct {
			email  string
			status models.SendStatus
		}{
			{"sent@example.com", models.StatusSent},
			{"draft@example.com", models.StatusDrafted},
			{"fail@example.com", models.StatusFailed},
			{"dry@example.com", models.StatusDryRun},
			{"sent@example.com", models.StatusBounced},
		}
		for _, s := range seed {
			if err := repo.Create(models.NewSendRecord(0, "", s.email, s.status)); err != nil {
				t.Fatal(err)
			}
		}

		got, err := repo.Processed()
		if err != nil {
			t.Fatalf("Processed() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 processed addresses, got %v", got)
		}
		if _, ok := got["dry@example.com"]; ok {
			t.Error("dry runs should not count as processed")
		}
		if got["sent@example.com"] != models.StatusBounced {
			t.Errorf("expected latest status bounced, got %q", got["sent@example.com"])
		}
	})

	t.Run("CountSince And LastSentAt", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSendLogRepository(db)
		if _, ok, err := repo.LastSentAt(); err != nil || ok {
			t.Fatalf("LastSentAt() on empty log = ok %v, err %v", ok, err)
		}

		now := time.Now()
		old := models.NewSendRecord(0, "", "old@example.com", models.StatusSent)
		old.SetCreatedAt(now.Add(-2 * time.Hour))
		recent := models.NewSendRecord(0, "", "new@example.com", models.StatusSent)
		recent.SetCreatedAt(now.Add(-10 * time.Minute))
		failed := models.NewSendRecord(0, "", "fail@example.com", models.StatusFailed)
		for _, rec := range []*models.SendRecord{old, recent, failed} {
			if err := repo.Create(rec); err != nil {
				t.Fatal(err)
			}
		}

		n, err := repo.CountSince(models.StatusSent, now.Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("CountSince(last hour) = %d, want 1", n)
		}

		n, err = repo.CountSince(models.StatusSent, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("CountSince(last day) = %d, want 2", n)
		}

		last, ok, err := repo.LastSentAt()
		if err != nil || !ok {
			t.Fatalf("LastSentAt() = ok %v, err %v", ok, err)
		}
		if !last.Equal(stamp(recent.CreatedAt())) {
			t.Errorf("LastSentAt() = %v, want %v", last, recent.CreatedAt())
		}
	})

	t.Run("MarkBounced Is Idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSendLogRepository(db)
		created, err := repo.MarkBounced("Ghost@Example.org", "Address not found")
		if err != nil || !created {
			t.Fatalf("first MarkBounced() = %v, %v", created, err)
		}
		created, err = repo.MarkBounced("ghost@example.org", "Address not found")
		if err != nil || created {
			t.Fatalf("second MarkBounced() = %v, %v", created, err)
		}

		records, err := repo.List(map[string]any{"email": "ghost@example.org", "status": models.StatusBounced})
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 || records[0].Reason() != "Address not found" {
			t.Errorf("expected one bounced record, got %d", len(records))
		}
	})

	t.Run("StatusCounts", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSendLogRepository(db)
		for _, s := range []models.SendStatus{models.StatusSent, models.StatusSent, models.StatusFailed} {
			if err := repo.Create(models.NewSendRecord(0, "", "a@example.com", s)); err != nil {
				t.Fatal(err)
			}
		}

		counts, err := repo.StatusCounts("")
		if err != nil {
			t.Fatal(err)
		}
		if counts[models.StatusSent] != 2 || counts[models.StatusFailed] != 1 {
			t.Errorf("StatusCounts() = %v", counts)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		repo := NewSendLogRepository(db)

		if err := repo.Create(models.NewSendRecord(0, "", "not-an-email", models.StatusSent)); err == nil {
			t.Error("expected validation error for bad email")
		}
		if err := repo.Create(models.NewSendRecord(0, "", "a@example.com", "queued")); err == nil {
			t.Error("expected validation error for unknown status")
		}
		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}

		rec := models.NewSendRecord(0, "", "a@example.com", models.StatusSent)
		if err := repo.Create(rec); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(rec.ID()); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete(rec.ID()); err == nil {
			t.Error("expected error deleting twice")
		}
		if _, err := repo.Get(rec.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("deleted record should not be found, got %v", err)
		}
	})
}
