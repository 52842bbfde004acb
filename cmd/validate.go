package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/csvlist"
	"github.com/desertthunder/pitch/internal/formatter"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/validator"
	"github.com/urfave/cli/v3"
)

// validationOptions derives the checks from [email] config, with --no-mx turning MX lookups off.
func (r *Runner) validationOptions(cmd *cli.Command) validator.Options {
	return validator.Options{
		CheckMX:         r.config.Email.CheckMX && !cmd.Bool("no-mx"),
		CheckDisposable: r.config.Email.SkipDisposable,
		CheckRole:       r.config.Email.SkipRoleAccount,
	}
}

// ValidateEmail checks a single address and prints the result.
func (r *Runner) ValidateEmail(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}

	result := r.newValidator().Validate(ctx, email, r.validationOptions(cmd))
	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	check := func(label string, ok bool) {
		mark := "✗"
		if ok {
			mark = "✓"
		}
		r.writePlain("  %s %s\n", mark, label)
	}

	r.writePlainHeader(result.Email)
	check("syntax", result.SyntaxValid)
	check("domain exists", result.DomainExists)
	check("mail exchanger", result.HasMX)
	check("not disposable", !result.IsDisposable)
	check("not a role account", !result.IsRoleAccount)
	if len(result.MXRecords) > 0 {
		r.writePlain("MX: %s\n", strings.Join(result.MXRecords, ", "))
	}
	for _, w := range result.Warnings {
		r.writePlain("⚠ %s\n", w)
	}
	for _, e := range result.Errors {
		r.writePlain("✗ %s\n", e)
	}

	if result.Valid {
		r.writePlainln("✓ %s looks deliverable", result.Email)
	} else {
		r.writePlainln("✗ %s is not deliverable", result.Email)
	}
	return nil
}

// ValidateCSV validates every address in a CSV list and writes a results CSV.
func (r *Runner) ValidateCSV(ctx context.Context, cmd *cli.Command) error {
	list, err := csvlist.Read(cmd.String("csv"))
	if err != nil {
		return err
	}
	emails, err := list.Emails(cmd.String("column"))
	if err != nil {
		return err
	}
	return r.validateAll(ctx, cmd, emails, nil)
}

// ValidateContacts validates every unique address in the contact sheet and writes a results CSV
// that carries the playlist details alongside each address.
func (r *Runner) ValidateContacts(ctx context.Context, cmd *cli.Command) error {
	dir, err := contacts.LoadDirectory(r.contactsPath(cmd))
	if err != nil {
		return err
	}

	var emails []string
	for _, c := range dir.Unique() {
		emails = append(emails, c.Email)
	}
	return r.validateAll(ctx, cmd, emails, dir)
}

func (r *Runner) validateAll(ctx context.Context, cmd *cli.Command, emails []string, dir formatter.ContactLookup) error {
	if len(emails) == 0 {
		return fmt.Errorf("%w: no email addresses found", shared.ErrInvalidInput)
	}

	output := cmd.String("output")
	if output == "" {
		output = r.config.Files.ValidationCSV
	}

	r.writePlain("Validating %d email addresses...\n", len(emails))
	results, err := r.newValidator().ValidateAll(ctx, emails, r.validationOptions(cmd), int(cmd.Int("workers")))
	if err != nil {
		return err
	}

	data, err := formatter.ValidationToCSV(results, dir)
	if err != nil {
		return err
	}
	if err := formatter.WriteFile(output, data); err != nil {
		return err
	}
	r.logger.Info("validation results saved", "path", output, "results", len(results))

	r.writePlainHeader("Validation Summary")
	formatter.WriteSummary(r.output, formatter.Summarize(results))
	r.writePlainln("Results saved to %s", output)
	return nil
}
