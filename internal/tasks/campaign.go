package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/templates"
	"github.com/desertthunder/pitch/internal/validator"
	"golang.org/x/time/rate"
)

// SendLog is the persistence the campaign engine needs. [*repositories.SendLogRepository]
// satisfies it.
type SendLog interface {
	SendCounter
	Create(rec *models.SendRecord) error
	Processed() (map[string]models.SendStatus, error)
	MarkStatus(email string, status models.SendStatus, reason string) (bool, error)
}

// CampaignStore persists campaign runs. [*repositories.CampaignRepository] satisfies it.
type CampaignStore interface {
	Create(c *models.Campaign) error
	Update(c *models.Campaign) error
}

// EmailValidator validates many addresses at once. [*validator.Validator] satisfies it.
type EmailValidator interface {
	ValidateAll(ctx context.Context, emails []string, opts validator.Options, workers int) ([]validator.Result, error)
}

// Renderer turns a contact into a message. [*templates.Template] satisfies it.
type Renderer interface {
	Render(c contacts.ContactRecord, opts templates.Options) (templates.Message, error)
}

// Skip reasons recorded by [CampaignEngine.Plan].
const (
	SkipNoEmail   = "no email"
	SkipDuplicate = "duplicate address"
	SkipGenre     = "genre filter"
	SkipInvalid   = "failed validation"
	SkipProcessed = "already processed"
	SkipLimit     = "over limit"
)

// Skipped is a contact left out of a campaign.
type Skipped struct {
	Contact contacts.ContactRecord
	Reason  string
	Detail  string
}

// PlanOpts controls which contacts a campaign targets.
type PlanOpts struct {
	Include           []string            // genre keywords, any must match; empty matches all
	Exclude           []string            // genre keywords, none may match
	Validate          bool                // run email validation
	ValidationOptions validator.Options   // checks used when validating
	Validated         map[string]struct{} // addresses already known to be valid
	IncludeProcessed  bool                // keep addresses already in the send log
	Limit             int                 // maximum targets, 0 for no limit
	Workers           int                 // validation workers
}

// Plan is the ordered list of contacts a campaign will reach.
type Plan struct {
	Targets    []contacts.ContactRecord
	Skipped    []Skipped
	Validation []validator.Result
}

// RunOpts controls how a plan is executed.
type RunOpts struct {
	Name     string
	Mode     models.CampaignMode
	DryRun   bool
	From     string
	CC       []string
	Template Renderer
	Values   templates.Options
}

// SendResult is the outcome for one target.
type SendResult struct {
	Email     string
	Subject   string
	Status    models.SendStatus
	MessageID string
	Err       error
}

// RunResult summarizes a campaign run.
type RunResult struct {
	Campaign     *models.Campaign
	Sent         int // sent or drafted
	Failed       int
	Skipped      int // targets not attempted because the run stopped
	LimitReached bool
	Results      []SendResult
}

// Failures returns the failed results in order.
func (r *RunResult) Failures() []SendResult {
	var out []SendResult
	for _, res := range r.Results {
		if res.Status == models.StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// EngineConfig holds the collaborators of a [CampaignEngine]. Mailer may be nil for dry runs;
// Validator may be nil when plans never validate; Campaigns may be nil.
type EngineConfig struct {
	Mailer    services.Mailer
	Validator EmailValidator
	SendLog   SendLog
	Campaigns CampaignStore
	Pacer     *Pacer
	Logger    *log.Logger
	DraftRate float64 // drafts per second, default 2
}

// CampaignEngine plans and runs outreach campaigns.
type CampaignEngine struct {
	mailer    services.Mailer
	validator EmailValidator
	sendLog   SendLog
	campaigns CampaignStore
	pacer     *Pacer
	logger    *log.Logger
	drafts    *rate.Limiter
}

// NewCampaignEngine creates an engine from cfg.
func NewCampaignEngine(cfg EngineConfig) *CampaignEngine {
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}
	if cfg.DraftRate <= 0 {
		cfg.DraftRate = 2
	}
	if cfg.Pacer == nil {
		cfg.Pacer = NewPacer(shared.DefaultConfig().Limits)
	}
	return &CampaignEngine{
		mailer:    cfg.Mailer,
		validator: cfg.Validator,
		sendLog:   cfg.SendLog,
		campaigns: cfg.Campaigns,
		pacer:     cfg.Pacer,
		logger:    cfg.Logger,
		drafts:    rate.NewLimiter(rate.Limit(cfg.DraftRate), 1),
	}
}

// Plan selects campaign targets from parsed contacts, in order: records with an email, unique
// addresses, genre filter, validation, send-log exclusion, limit.
func (e *CampaignEngine) Plan(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	records []contacts.ContactRecord,
	opts PlanOpts,
) (*Plan, error) {
	plan := &Plan{}
	skip := func(c contacts.ContactRecord, reason, detail string) {
		plan.Skipped = append(plan.Skipped, Skipped{Contact: c, Reason: reason, Detail: detail})
	}

	seen := make(map[string]struct{}, len(records))
	var candidates []contacts.ContactRecord
	for _, c := range records {
		email := shared.NormalizeEmail(c.Email)
		switch {
		case email == "":
			skip(c, SkipNoEmail, "")
			continue
		case hasKey(seen, email):
			skip(c, SkipDuplicate, email)
			continue
		}
		seen[email] = struct{}{}

		if !templates.MatchesGenres(c.Genres, opts.Include, opts.Exclude) {
			skip(c, SkipGenre, c.Genres)
			continue
		}
		candidates = append(candidates, c.Clone())
	}
	sendProgress(prog, filterUpdate(len(candidates), len(records)))

	if opts.Validate {
		var err error
		candidates, err = e.validate(ctx, prog, plan, candidates, opts)
		if err != nil {
			return plan, err
		}
	}

	var processed map[string]models.SendStatus
	if e.sendLog != nil {
		var err error
		if processed, err = e.sendLog.Processed(); err != nil {
			return plan, fmt.Errorf("failed to load send log: %w", err)
		}
	}

	for _, c := range candidates {
		email := shared.NormalizeEmail(c.Email)
		// bounced addresses stay excluded even when re-contacting processed ones
		if status, ok := processed[email]; ok && (!opts.IncludeProcessed || status == models.StatusBounced) {
			skip(c, SkipProcessed, string(status))
			continue
		}
		if opts.Limit > 0 && len(plan.Targets) >= opts.Limit {
			skip(c, SkipLimit, "")
			continue
		}
		plan.Targets = append(plan.Targets, c)
	}

	e.logger.Info("campaign planned", "targets", len(plan.Targets), "skipped", len(plan.Skipped))
	return plan, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

// validate drops candidates that fail validation. Addresses in opts.Validated are trusted.
func (e *CampaignEngine) validate(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	plan *Plan,
	candidates []contacts.ContactRecord,
	opts PlanOpts,
) ([]contacts.ContactRecord, error) {
	var pending []string
	for _, c := range candidates {
		if email := shared.NormalizeEmail(c.Email); !hasKey(opts.Validated, email) {
			pending = append(pending, email)
		}
	}
	if len(pending) == 0 {
		return candidates, nil
	}
	if e.validator == nil {
		return nil, fmt.Errorf("%w: no validator configured", shared.ErrServiceUnavailable)
	}

	sendProgress(prog, validatingUpdate(len(pending)))
	results, err := e.validator.ValidateAll(ctx, pending, opts.ValidationOptions, opts.Workers)
	if err != nil {
		return nil, err
	}
	plan.Validation = results

	byEmail := make(map[string]validator.Result, len(results))
	for _, r := range results {
		byEmail[shared.NormalizeEmail(r.Email)] = r
	}

	kept := candidates[:0]
	for _, c := range candidates {
		r, checked := byEmail[shared.NormalizeEmail(c.Email)]
		if checked && !r.Valid {
			skip := Skipped{Contact: c, Reason: SkipInvalid}
			if len(r.Errors) > 0 {
				skip.Detail = r.Errors[0]
			}
			plan.Skipped = append(plan.Skipped, skip)
			continue
		}
		kept = append(kept, c)
	}
	sendProgress(prog, validatedUpdate(len(kept), len(candidates)))
	return kept, nil
}

// Run renders and delivers each target in plan. Sends are paced; drafts are lightly rate limited;
// dry runs only render and record. The run stops early, without error, when the daily limit is
// reached, and returns the context error when cancelled.
func (e *CampaignEngine) Run(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	plan *Plan,
	opts RunOpts,
) (*RunResult, error) {
	if opts.Template == nil {
		return nil, fmt.Errorf("%w: template", shared.ErrMissingArgument)
	}
	if opts.Mode == "" {
		opts.Mode = models.ModeDraft
	}
	if !opts.DryRun && e.mailer == nil {
		return nil, fmt.Errorf("%w: mailer not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("%s %s", opts.Mode, time.Now().Format("2006-01-02 15:04"))
	}

	result := &RunResult{Campaign: models.NewCampaign(0, opts.Name, opts.Mode, opts.DryRun)}
	if e.campaigns != nil {
		if err := e.campaigns.Create(result.Campaign); err != nil {
			return nil, fmt.Errorf("failed to record campaign: %w", err)
		}
	}

	total := len(plan.Targets)
	e.pacer.OnWait = func(d time.Duration, reason string) {
		e.logger.Info("waiting", "for", d.Round(time.Second), "reason", reason)
		sendProgress(prog, waitUpdate(len(result.Results), total, d, reason))
	}
	defer func() { e.pacer.OnWait = nil }()

	var runErr error
	for i, c := range plan.Targets {
		if err := ctx.Err(); err != nil {
			runErr = err
			result.Skipped = total - i
			break
		}

		res, err := e.deliver(ctx, c, opts)
		if errors.Is(err, shared.ErrDailyLimit) {
			e.logger.Warn("daily limit reached, stopping", "sent", result.Sent)
			result.LimitReached = true
			result.Skipped = total - i
			break
		}
		if err != nil {
			runErr = err
			result.Skipped = total - i
			break
		}

		e.record(result, res)
		sendProgress(prog, sendUpdate(i+1, total, res))
	}

	result.Campaign.SetCounts(result.Sent, result.Failed)
	result.Campaign.Finish(time.Now())
	if e.campaigns != nil {
		if err := e.campaigns.Update(result.Campaign); err != nil {
			e.logger.Error("failed to update campaign", "error", err)
		}
	}

	return result, runErr
}

// deliver handles one target. A returned error aborts the run; per-target failures are reported
// in the result instead.
func (e *CampaignEngine) deliver(ctx context.Context, c contacts.ContactRecord, opts RunOpts) (SendResult, error) {
	res := SendResult{Email: shared.NormalizeEmail(c.Email)}

	msg, err := opts.Template.Render(c, opts.Values)
	if err != nil {
		res.Status, res.Err = models.StatusFailed, fmt.Errorf("render: %w", err)
		return res, nil
	}
	res.Subject = msg.Subject

	if opts.DryRun {
		res.Status = models.StatusDryRun
		return res, nil
	}

	email := services.Email{
		From:    opts.From,
		To:      res.Email,
		CC:      opts.CC,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Plain:   msg.Plain,
	}

	switch opts.Mode {
	case models.ModeSend:
		if err := e.pacer.Wait(ctx); err != nil {
			return res, err
		}
		res.MessageID, err = e.mailer.Send(ctx, email)
		if err == nil {
			e.pacer.Record()
			res.Status = models.StatusSent
		}
	default:
		if err := e.drafts.Wait(ctx); err != nil {
			return res, err
		}
		res.MessageID, err = e.mailer.CreateDraft(ctx, email)
		if err == nil {
			res.Status = models.StatusDrafted
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Status, res.Err = models.StatusFailed, err
	}
	return res, nil
}

// record tallies res and writes it to the send log.
func (e *CampaignEngine) record(result *RunResult, res SendResult) {
	result.Results = append(result.Results, res)
	switch res.Status {
	case models.StatusFailed:
		result.Failed++
		e.logger.Error("delivery failed", "email", res.Email, "error", res.Err)
	default:
		result.Sent++
		e.logger.Info("delivered", "email", res.Email, "status", res.Status, "id", res.MessageID)
	}

	if e.sendLog == nil {
		return
	}
	rec := models.NewSendRecord(0, result.Campaign.ID(), res.Email, res.Status)
	rec.SetMessageID(res.MessageID)
	if res.Err != nil {
		rec.SetReason(res.Err.Error())
	}
	if err := e.sendLog.Create(rec); err != nil {
		e.logger.Error("failed to write send log", "email", res.Email, "error", err)
	}
}
