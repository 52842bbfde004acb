package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/desertthunder/pitch/internal/csvlist"
	"github.com/desertthunder/pitch/internal/formatter"
	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/repositories"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/tasks"
	"github.com/desertthunder/pitch/internal/templates"
	"github.com/urfave/cli/v3"
)

// DraftsCreate creates one Gmail draft per selected contact.
func (r *Runner) DraftsCreate(ctx context.Context, cmd *cli.Command) error {
	return r.runCampaign(ctx, cmd, models.ModeDraft)
}

// CampaignSend sends one message per selected contact, paced by [limits].
func (r *Runner) CampaignSend(ctx context.Context, cmd *cli.Command) error {
	return r.runCampaign(ctx, cmd, models.ModeSend)
}

func (r *Runner) runCampaign(ctx context.Context, cmd *cli.Command, mode models.CampaignMode) error {
	dryRun := cmd.Bool("dry-run")

	records, err := r.loadContacts(cmd)
	if err != nil {
		return err
	}

	templatePath := cmd.String("template")
	if templatePath == "" {
		templatePath = r.config.Files.Template
	}
	tmpl, err := templates.Load(templatePath)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	sendLog := repositories.NewSendLogRepository(db)
	campaigns := repositories.NewCampaignRepository(db)

	if err := r.importFailures(sendLog, r.config.Files.FailuresCSV); err != nil {
		return err
	}

	validated, err := r.validatedEmails()
	if err != nil {
		return err
	}

	pacer := tasks.NewPacer(r.config.Limits)
	if err := pacer.Seed(sendLog); err != nil {
		return fmt.Errorf("failed to seed send limits: %w", err)
	}

	var mailer services.Mailer
	if !dryRun {
		if mailer, err = r.getMailer(ctx); err != nil {
			return err
		}
	}

	engine := tasks.NewCampaignEngine(tasks.EngineConfig{
		Mailer:    mailer,
		Validator: r.newValidator(),
		SendLog:   sendLog,
		Campaigns: campaigns,
		Pacer:     pacer,
		Logger:    shared.WithLogger(r.logger, "mode", mode),
	})

	progressCh, stop := r.watchProgress()
	plan, err := engine.Plan(ctx, progressCh, records, tasks.PlanOpts{
		Include:           stringsOr(cmd.StringSlice("genre"), r.config.Email.GenreKeywords),
		Exclude:           stringsOr(cmd.StringSlice("exclude-genre"), r.config.Email.ExcludeGenres),
		Validate:          r.config.Email.Validate && !cmd.Bool("no-validate"),
		ValidationOptions: r.validationOptions(cmd),
		Validated:         validated,
		IncludeProcessed:  !cmd.Bool("resume"),
		Limit:             int(cmd.Int("limit")),
	})
	stop()
	if err != nil {
		return err
	}
	r.writeSkipped(plan.Skipped)

	if len(plan.Targets) == 0 {
		r.writePlainln("No contacts left to reach.")
		return nil
	}

	if dryRun {
		r.writePlainln("DRY RUN: rendering %d messages, nothing will be created or sent", len(plan.Targets))
	} else {
		r.writePlainln("Reaching %d contacts (%s mode)", len(plan.Targets), mode)
	}

	progressCh, stop = r.watchProgress()
	result, runErr := engine.Run(ctx, progressCh, plan, tasks.RunOpts{
		Name:     cmd.String("name"),
		Mode:     mode,
		DryRun:   dryRun,
		CC:       splitList(r.config.Email.CC),
		Template: tmpl,
		Values: templates.Options{
			Artist: templates.Artist{
				Name:        r.config.Artist.Name,
				SpotifyLink: r.config.Artist.SpotifyLink,
				Instagram:   r.config.Artist.Instagram,
				Website:     r.config.Artist.Website,
			},
			CustomMessage:  r.config.Email.CustomMessage,
			AdditionalInfo: r.config.Email.AdditionalInfo,
			Subject:        r.config.Email.Subject,
		},
	})
	stop()
	if result == nil {
		return runErr
	}

	r.writeRunResult(result, mode, dryRun)
	if result.LimitReached {
		r.writePlain("Daily limit of %d reached. Run again tomorrow to continue.\n", r.config.Limits.Daily)
	}
	return runErr
}

// importFailures records addresses from a failures report before planning so they are never
// contacted. A missing file is not an error.
func (r *Runner) importFailures(sendLog tasks.SendLog, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	list, err := csvlist.Read(path)
	if err != nil {
		return err
	}
	bounces, err := formatter.ReadBounces(list)
	if err != nil {
		return err
	}
	n, err := tasks.MarkBounces(sendLog, bounces)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Info("imported failed addresses", "path", path, "new", n)
	}
	return nil
}

// validatedEmails loads addresses already marked valid in the validation results file.
func (r *Runner) validatedEmails() (map[string]struct{}, error) {
	path := r.config.Files.ValidationCSV
	if path == "" {
		return nil, nil
	}
	list, err := csvlist.Read(path)
	if errors.Is(err, shared.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return list.ValidatedEmails()
}

func (r *Runner) writeSkipped(skipped []tasks.Skipped) {
	if len(skipped) == 0 {
		return
	}
	counts := make(map[string]int)
	for _, s := range skipped {
		counts[s.Reason]++
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	r.writePlain("Skipped %d contacts:\n", len(skipped))
	for _, reason := range reasons {
		r.writePlain("  %-20s %d\n", reason, counts[reason])
	}
}

func (r *Runner) writeRunResult(result *tasks.RunResult, mode models.CampaignMode, dryRun bool) {
	verb := "Sent"
	switch {
	case dryRun:
		verb = "Rendered"
	case mode == models.ModeDraft:
		verb = "Drafted"
	}

	r.writePlain("\n")
	r.writePlainHeader("Campaign: " + result.Campaign.Name())
	r.writePlain("%-9s %d\n", verb+":", result.Sent)
	r.writePlain("%-9s %d\n", "Failed:", result.Failed)
	if result.Skipped > 0 {
		r.writePlain("%-9s %d\n", "Stopped:", result.Skipped)
	}

	if failures := result.Failures(); len(failures) > 0 {
		r.writePlainln("Failures:")
		for _, f := range failures {
			r.writePlain("  ✗ %s: %v\n", f.Email, f.Err)
		}
	}
}

// CampaignStatus shows the latest campaign, send log totals and the remaining allowance.
func (r *Runner) CampaignStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	sendLog := repositories.NewSendLogRepository(db)
	campaigns := repositories.NewCampaignRepository(db)

	latest, err := campaigns.Latest()
	if err != nil && !errors.Is(err, shared.ErrRecordNotFound) {
		return err
	}

	totals, err := sendLog.StatusCounts("")
	if err != nil {
		return err
	}

	pacer := tasks.NewPacer(r.config.Limits)
	if err := pacer.Seed(sendLog); err != nil {
		return err
	}
	hour, day := pacer.Remaining()

	status := campaignStatus{
		Totals:        statusMap(totals),
		HourRemaining: hour,
		DayRemaining:  day,
	}
	if latest != nil {
		counts, err := sendLog.StatusCounts(latest.ID())
		if err != nil {
			return err
		}
		status.Latest = &campaignSummary{
			ID:        latest.ID(),
			Name:      latest.Name(),
			Mode:      string(latest.Mode()),
			DryRun:    latest.DryRun(),
			Sent:      latest.SentCount(),
			Failed:    latest.FailedCount(),
			StartedAt: latest.CreatedAt().Local().Format("2006-01-02 15:04"),
			Statuses:  statusMap(counts),
		}
		if f := latest.FinishedAt(); f != nil {
			status.Latest.FinishedAt = f.Local().Format("2006-01-02 15:04")
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Campaign Status")
	if l := status.Latest; l != nil {
		r.writePlain("Latest:    %s (%s", l.Name, l.Mode)
		if l.DryRun {
			r.writePlain(", dry run")
		}
		r.writePlain(")\n")
		r.writePlain("Started:   %s\n", l.StartedAt)
		if l.FinishedAt != "" {
			r.writePlain("Finished:  %s\n", l.FinishedAt)
		} else {
			r.writePlain("Finished:  (interrupted)\n")
		}
		r.writePlain("Delivered: %d, failed: %d\n", l.Sent, l.Failed)
	} else {
		r.writePlain("No campaigns yet.\n")
	}

	r.writePlainln("Send log:")
	for _, s := range []models.SendStatus{
		models.StatusSent, models.StatusDrafted, models.StatusFailed, models.StatusBounced, models.StatusDryRun,
	} {
		r.writePlain("  %-8s %d\n", s, totals[s])
	}

	r.writePlainln("Remaining today: %s, this hour: %s", allowance(day), allowance(hour))
	return nil
}

type campaignSummary struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Mode       string         `json:"mode"`
	DryRun     bool           `json:"dry_run"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Statuses   map[string]int `json:"statuses"`
}

type campaignStatus struct {
	Latest        *campaignSummary `json:"latest,omitempty"`
	Totals        map[string]int   `json:"totals"`
	HourRemaining int              `json:"hour_remaining"`
	DayRemaining  int              `json:"day_remaining"`
}

func statusMap(counts map[models.SendStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for s, n := range counts {
		out[string(s)] = n
	}
	return out
}

func allowance(n int) string {
	if n < 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func stringsOr(values, fallback []string) []string {
	if len(values) > 0 {
		return values
	}
	return fallback
}

// splitList splits a comma separated config value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
