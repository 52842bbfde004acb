package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/validator"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services are created on first use so commands that only read files never need credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	logFile    *os.File
	output     io.Writer
	db         *sql.DB
	gmail      *services.GmailService
	mailer     services.Mailer
	mailbox    services.MailboxReader
	spotify    services.PlaylistLookup
	resolver   validator.Resolver
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
	Mailer     services.Mailer
	Mailbox    services.MailboxReader
	Spotify    services.PlaylistLookup
	Resolver   validator.Resolver
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		mailer:     opts.Mailer,
		mailbox:    opts.Mailbox,
		spotify:    opts.Spotify,
		resolver:   opts.Resolver,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, gmailCommand, contactsCommand, validateCommand, draftsCommand, campaignCommand, bouncesCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database and log file, if either was opened.
func (r *Runner) Close() error {
	var err error
	if r.db != nil {
		err = r.db.Close()
		r.db = nil
	}
	if r.logFile != nil {
		r.logFile.Close()
		r.logFile = nil
	}
	return err
}

// database opens the configured database and applies migrations on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

// gmailService builds the Gmail client without activating a token.
func (r *Runner) gmailService() (*services.GmailService, error) {
	if r.gmail != nil {
		return r.gmail, nil
	}
	svc, err := services.NewGmailService(r.config.Credentials.Gmail)
	if err != nil {
		return nil, err
	}
	svc.SetTokenRefreshCallback(func(_ *oauth2.Token) {
		r.logger.Debug("gmail token refreshed")
	})
	r.gmail = svc
	return svc, nil
}

// authenticatedGmail returns the Gmail client with its cached token active.
func (r *Runner) authenticatedGmail(ctx context.Context) (*services.GmailService, error) {
	svc, err := r.gmailService()
	if err != nil {
		return nil, err
	}
	if svc.Token() == nil {
		if err := svc.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func (r *Runner) getMailer(ctx context.Context) (services.Mailer, error) {
	if r.mailer != nil {
		return r.mailer, nil
	}
	svc, err := r.authenticatedGmail(ctx)
	if err != nil {
		return nil, err
	}
	r.mailer = svc
	return svc, nil
}

func (r *Runner) getMailbox(ctx context.Context) (services.MailboxReader, error) {
	if r.mailbox != nil {
		return r.mailbox, nil
	}
	svc, err := r.authenticatedGmail(ctx)
	if err != nil {
		return nil, err
	}
	r.mailbox = svc
	return svc, nil
}

func (r *Runner) getSpotify(ctx context.Context) (services.PlaylistLookup, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     r.config.Credentials.Spotify.ClientID,
		"client_secret": r.config.Credentials.Spotify.ClientSecret,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("%w: spotify: %v", shared.ErrAuthFailed, err)
	}
	r.spotify = svc
	return svc, nil
}

func (r *Runner) newValidator() *validator.Validator {
	return validator.New(r.resolver, r.logger)
}

// loadContacts parses the contacts file named by the --contacts flag or the config.
func (r *Runner) loadContacts(cmd *cli.Command) ([]contacts.ContactRecord, error) {
	path := r.contactsPath(cmd)
	records, err := contacts.ParseFile(path)
	if err != nil {
		return nil, err
	}
	r.logger.Info("parsed contacts", "file", path, "records", len(records))
	return records, nil
}

func (r *Runner) contactsPath(cmd *cli.Command) string {
	if p := cmd.String("contacts"); p != "" {
		return p
	}
	return r.config.Files.Contacts
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
