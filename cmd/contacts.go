package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/csvlist"
	"github.com/desertthunder/pitch/internal/formatter"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultEnrichedPath = "playlist_contacts_enriched.csv"

// ContactsParse reconstructs contact records from the sheet and prints them.
func (r *Runner) ContactsParse(ctx context.Context, cmd *cli.Command) error {
	records, err := r.loadContacts(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if records == nil {
			records = []contacts.ContactRecord{}
		}
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	dir := contacts.NewDirectory(records)
	withEmail := len(dir.Emails())
	r.writePlainHeader(fmt.Sprintf("Contacts (%d)", len(records)))
	for i, c := range records {
		r.writePlain("%3d. %s\n", i+1, describeContact(c))
	}
	r.writePlainln("%d records, %d with email, %d unique addresses", len(records), withEmail, len(dir.Unique()))
	return nil
}

func describeContact(c contacts.ContactRecord) string {
	name := c.PlaylistName
	if name == "" {
		name = "(untitled)"
	}
	parts := []string{name}
	if c.Curator != "" {
		parts = append(parts, c.Curator)
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	if c.Followers != "" {
		parts = append(parts, c.Followers+" followers")
	}
	return strings.Join(parts, " • ")
}

// ContactsExport writes records as CSV, JSON or Markdown to a file or stdout.
func (r *Runner) ContactsExport(ctx context.Context, cmd *cli.Command) error {
	output := cmd.String("output")
	format, err := formatter.ParseFormat(cmd.String("format"), output)
	if err != nil {
		return err
	}

	records, err := r.loadContacts(cmd)
	if err != nil {
		return err
	}

	data, err := formatter.ExportContacts(records, format)
	if err != nil {
		return err
	}

	if output == "" {
		_, err := r.output.Write(data)
		return err
	}
	if err := formatter.WriteFile(output, data); err != nil {
		return err
	}
	r.logger.Info("exported contacts", "path", output, "format", format, "records", len(records))
	r.writePlain("✓ Exported %d contacts to %s\n", len(records), output)
	return nil
}

// ContactsLookup prints the record for one address.
func (r *Runner) ContactsLookup(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: email", shared.ErrMissingArgument)
	}

	dir, err := contacts.LoadDirectory(r.contactsPath(cmd))
	if err != nil {
		return err
	}

	c, ok := dir.LookupByEmail(email)
	if !ok {
		return fmt.Errorf("%w: no contact for %s", shared.ErrRecordNotFound, email)
	}

	if cmd.Bool("json") {
		return r.writeJSON(c, cmd.Bool("pretty"))
	}
	r.writeContact(*c)
	return nil
}

func (r *Runner) writeContact(c contacts.ContactRecord) {
	field := func(label, value string) {
		if value != "" {
			r.writePlain("%-10s %s\n", label+":", value)
		}
	}
	r.writePlainHeader(c.Email)
	field("Playlist", c.PlaylistName)
	field("Curator", c.Curator)
	field("Genres", c.Genres)
	field("Followers", c.Followers)
	field("Spotify", c.SpotifyURL)
	field("Instagram", c.Instagram)
	for _, link := range c.OtherLinks {
		field("Link", link)
	}
}

// ContactsEmails lists unique addresses, one per line.
func (r *Runner) ContactsEmails(ctx context.Context, cmd *cli.Command) error {
	dir, err := contacts.LoadDirectory(r.contactsPath(cmd))
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, c := range dir.Unique() {
		b.WriteString(shared.NormalizeEmail(c.Email))
		b.WriteString("\n")
	}

	if output := cmd.String("output"); output != "" {
		if err := formatter.WriteFile(output, []byte(b.String())); err != nil {
			return err
		}
		r.writePlain("✓ Wrote %d addresses to %s\n", len(dir.Unique()), output)
		return nil
	}
	return r.writePlain("%s", b.String())
}

// ContactsMatch reports which addresses of a CSV list appear in the contact sheet.
func (r *Runner) ContactsMatch(ctx context.Context, cmd *cli.Command) error {
	list, err := csvlist.Read(cmd.String("csv"))
	if err != nil {
		return err
	}
	emails, err := list.Emails(cmd.String("column"))
	if err != nil {
		return err
	}

	dir, err := contacts.LoadDirectory(r.contactsPath(cmd))
	if err != nil {
		return err
	}

	var matched []contacts.ContactRecord
	var missing []string
	seen := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		key := shared.NormalizeEmail(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if c, ok := dir.LookupByEmail(key); ok {
			matched = append(matched, c.Clone())
		} else {
			missing = append(missing, key)
		}
	}

	r.logger.Info("matched csv against contacts", "csv", len(seen), "matched", len(matched))

	if output := cmd.String("output"); output != "" {
		data, err := formatter.ContactsToCSV(matched)
		if err != nil {
			return err
		}
		if err := formatter.WriteFile(output, data); err != nil {
			return err
		}
	}

	r.writePlainHeader("Match")
	r.writePlain("Addresses in CSV:  %d\n", len(seen))
	r.writePlain("Found in contacts: %d\n", len(matched))
	r.writePlain("Not found:         %d\n", len(missing))
	for _, m := range missing {
		r.writePlain("  ✗ %s\n", m)
	}
	return nil
}

// ContactsEnrich fills missing playlist metadata from Spotify and writes the enriched records.
func (r *Runner) ContactsEnrich(ctx context.Context, cmd *cli.Command) error {
	output := cmd.String("output")
	if output == "" {
		output = defaultEnrichedPath
	}
	format, err := formatter.ParseFormat(cmd.String("format"), output)
	if err != nil {
		return err
	}

	records, err := r.loadContacts(cmd)
	if err != nil {
		return err
	}

	spotify, err := r.getSpotify(ctx)
	if err != nil {
		return err
	}

	progressCh, stop := r.watchProgress()
	result, err := tasks.Enrich(ctx, progressCh, spotify, records, r.logger, tasks.EnrichOpts{
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	})
	stop()
	if err != nil {
		return err
	}

	data, err := formatter.ExportContacts(result.Records, format)
	if err != nil {
		return err
	}
	if err := formatter.WriteFile(output, data); err != nil {
		return err
	}

	r.writePlainln("✓ Enrichment complete")
	r.writePlain("Looked up: %d\n", result.Looked)
	r.writePlain("Updated:   %d\n", result.Updated)
	r.writePlain("Failed:    %d\n", result.Failed)
	r.writePlain("Saved to:  %s\n", output)
	return nil
}
