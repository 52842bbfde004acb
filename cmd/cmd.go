// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func contactsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "contacts",
		Usage: "Path to the extracted contact sheet text (default: files.contacts)",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func outputFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   usage,
	}
}

// selectionFlags are shared by commands that pick campaign targets.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of contacts to reach (0 for all)",
		},
		&cli.StringSliceFlag{
			Name:    "genre",
			Aliases: []string{"g"},
			Usage:   "Only contacts whose genres mention this keyword (repeatable; default: email.genre_keywords)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-genre",
			Usage: "Skip contacts whose genres mention this keyword (repeatable; default: email.exclude_genres)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Render messages without touching Gmail",
		},
		&cli.StringFlag{
			Name:    "template",
			Aliases: []string{"t"},
			Usage:   "Path to the markdown template (default: files.template)",
		},
		&cli.BoolFlag{
			Name:  "no-validate",
			Usage: "Skip email validation before reaching out",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Skip addresses already in the send log",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write a starter config.toml",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config, keeping the current values",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// gmailCommand handles Gmail authorization.
func gmailCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "gmail",
		Usage: "Gmail account operations",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Authorize pitch to draft, send and read mail using OAuth2",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL instead of opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the OAuth callback",
						Value: 5 * time.Minute,
					},
				},
				Action: r.GmailAuth,
			},
			{
				Name:   "status",
				Usage:  "Show the authorized mailbox",
				Flags:  jsonFlags(),
				Action: r.GmailStatus,
			},
		},
	}
}

// contactsCommand handles contact sheet operations.
func contactsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "contacts",
		Aliases: []string{"c"},
		Usage:   "Parse and inspect a playlist contact sheet",
		Flags:   []cli.Flag{contactsFlag()},
		Commands: []*cli.Command{
			{
				Name:   "parse",
				Usage:  "Reconstruct contact records and print them",
				Flags:  jsonFlags(),
				Action: r.ContactsParse,
			},
			{
				Name:  "export",
				Usage: "Export contact records as CSV, JSON or Markdown",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: csv, json or md (default: from --output extension, else csv)",
					},
					outputFlag("Output file path (default: stdout)"),
				},
				Action: r.ContactsExport,
			},
			{
				Name:  "lookup",
				Usage: "Show the contact record for an email address",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags:  jsonFlags(),
				Action: r.ContactsLookup,
			},
			{
				Name:  "emails",
				Usage: "List unique contact email addresses",
				Flags: []cli.Flag{
					outputFlag("Write addresses to a file, one per line"),
				},
				Action: r.ContactsEmails,
			},
			{
				Name:  "match",
				Usage: "Match addresses from a CSV against the contact sheet",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "csv",
						Usage:    "CSV file with an email column",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "column",
						Usage: "Email column name (default: detected)",
					},
					outputFlag("Write matched records to a CSV file"),
				},
				Action: r.ContactsMatch,
			},
			{
				Name:  "enrich",
				Usage: "Fill missing playlist names, curators and followers from Spotify",
				Flags: []cli.Flag{
					outputFlag("Output file path (default: playlist_contacts_enriched.csv)"),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: csv, json or md",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent Spotify lookups",
						Value: 4,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Spotify requests per second",
						Value: 5,
					},
				},
				Action: r.ContactsEnrich,
			},
			{
				Name:    "browse",
				Aliases: []string{"ui"},
				Usage:   "Browse contacts in an interactive terminal UI",
				Action:  r.ContactsBrowse,
			},
		},
	}
}

// validateCommand handles email validation.
func validateCommand(r *Runner) *cli.Command {
	checkFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-mx",
				Usage: "Skip MX record lookups",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent validations",
				Value: 8,
			},
		}
	}

	return &cli.Command{
		Name:  "validate",
		Usage: "Check email addresses without sending mail",
		Commands: []*cli.Command{
			{
				Name:  "email",
				Usage: "Validate a single address",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags:  append(checkFlags(), jsonFlags()...),
				Action: r.ValidateEmail,
			},
			{
				Name:  "csv",
				Usage: "Validate every address in a CSV file",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "csv",
						Usage:    "CSV file with an email column",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "column",
						Usage: "Email column name (default: detected)",
					},
					outputFlag("Results CSV path (default: files.validation_csv)"),
				}, checkFlags()...),
				Action: r.ValidateCSV,
			},
			{
				Name:  "contacts",
				Usage: "Validate every address in the contact sheet",
				Flags: append([]cli.Flag{
					contactsFlag(),
					outputFlag("Results CSV path (default: files.validation_csv)"),
				}, checkFlags()...),
				Action: r.ValidateContacts,
			},
		},
	}
}

// draftsCommand creates Gmail drafts for review.
func draftsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "drafts",
		Usage: "Prepare outreach as Gmail drafts",
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create one draft per selected contact",
				Flags:  append([]cli.Flag{contactsFlag()}, selectionFlags()...),
				Action: r.DraftsCreate,
			},
		},
	}
}

// campaignCommand sends outreach and reports progress.
func campaignCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "campaign",
		Usage: "Send outreach directly, paced to stay under Gmail limits",
		Commands: []*cli.Command{
			{
				Name:  "send",
				Usage: "Send one message per selected contact",
				Flags: append([]cli.Flag{
					contactsFlag(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "Campaign name recorded in the send log",
					},
				}, selectionFlags()...),
				Action: r.CampaignSend,
			},
			{
				Name:   "status",
				Usage:  "Show the latest campaign and remaining send allowance",
				Flags:  jsonFlags(),
				Action: r.CampaignStatus,
			},
		},
	}
}

// bouncesCommand finds and records delivery failures.
func bouncesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "bounces",
		Usage: "Find delivery failures so they are never contacted again",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Scan the mailbox for bounce notifications",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Search window in days",
						Value: 7,
					},
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum messages to inspect",
						Value: 500,
					},
					&cli.BoolFlag{
						Name:  "mark",
						Usage: "Record bounced addresses in the send log",
						Value: true,
					},
					outputFlag("Bounce report CSV path (default: files.failures_csv)"),
				},
				Action: r.BouncesCheck,
			},
			{
				Name:  "import",
				Usage: "Record bounces from a previously written report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "csv",
						Usage: "Bounce report CSV (default: files.failures_csv)",
					},
				},
				Action: r.BouncesImport,
			},
		},
	}
}
