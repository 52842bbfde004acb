// package formatter renders contacts, validation results and bounce reports as CSV, JSON, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/csvlist"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/desertthunder/pitch/internal/tasks"
	"github.com/desertthunder/pitch/internal/validator"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// ParseFormat maps a flag value to a [Format]. An empty value picks the format from the
// extension of path, falling back to CSV.
func ParseFormat(value, path string) (Format, error) {
	if value == "" {
		value = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if value == "" {
			return FormatCSV, nil
		}
	}
	switch strings.ToLower(value) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, value)
}

// ContactColumns is the header of a contacts CSV.
var ContactColumns = []string{
	"email", "playlist_name", "curator", "genres", "spotify_url", "followers", "instagram", "other_links",
}

// ValidationColumns is the header of a validation report.
var ValidationColumns = []string{
	"email", "valid", "syntax_valid", "domain_exists", "has_mx", "is_disposable", "is_role_account",
	"playlist_name", "curator", "spotify_url", "followers", "genres", "warnings", "errors",
}

// BounceColumns is the header of a bounce report. [ReadBounces] accepts the same layout.
var BounceColumns = []string{"email", "reason", "subject", "date", "message_id"}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ContactsToCSV renders records with [ContactColumns]. Extra links are joined with "; ".
func ContactsToCSV(records []contacts.ContactRecord) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Email,
			r.PlaylistName,
			r.Curator,
			r.Genres,
			r.SpotifyURL,
			r.Followers,
			r.Instagram,
			strings.Join(r.OtherLinks, "; "),
		})
	}
	return writeCSV(ContactColumns, rows)
}

// ContactsToJSON renders records as an indented JSON array.
func ContactsToJSON(records []contacts.ContactRecord) ([]byte, error) {
	if records == nil {
		records = []contacts.ContactRecord{}
	}
	return shared.MarshalJSON(records, true)
}

// ContactsToMarkdown renders one section per record, titled by playlist name.
func ContactsToMarkdown(records []contacts.ContactRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Playlist Contacts\n\n")
	fmt.Fprintf(&buf, "**Contacts**: %d\n\n", len(records))

	for i, r := range records {
		title := r.PlaylistName
		if title == "" {
			title = "Untitled playlist"
		}
		fmt.Fprintf(&buf, "## %d. %s\n\n", i+1, title)

		field := func(label, value string) {
			if value != "" {
				fmt.Fprintf(&buf, "- **%s**: %s\n", label, value)
			}
		}
		field("Email", r.Email)
		field("Curator", r.Curator)
		field("Genres", r.Genres)
		field("Followers", r.Followers)
		field("Spotify", r.SpotifyURL)
		field("Instagram", r.Instagram)
		for _, link := range r.OtherLinks {
			field("Link", link)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ExportContacts renders records in format.
func ExportContacts(records []contacts.ContactRecord, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ContactsToJSON(records)
	case FormatMarkdown:
		return ContactsToMarkdown(records)
	default:
		return ContactsToCSV(records)
	}
}

// ContactLookup finds the parsed contact for an address. [*contacts.Directory] satisfies it.
type ContactLookup interface {
	LookupByEmail(email string) (*contacts.ContactRecord, bool)
}

// ValidationToCSV renders results with [ValidationColumns]. When dir is not nil, contact fields
// are filled from the matching record. Warnings and errors are joined with "; ".
func ValidationToCSV(results []validator.Result, dir ContactLookup) ([]byte, error) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		var c contacts.ContactRecord
		if dir != nil {
			if found, ok := dir.LookupByEmail(r.Email); ok {
				c = *found
			}
		}
		rows = append(rows, []string{
			r.Email,
			strconv.FormatBool(r.Valid),
			strconv.FormatBool(r.SyntaxValid),
			strconv.FormatBool(r.DomainExists),
			strconv.FormatBool(r.HasMX),
			strconv.FormatBool(r.IsDisposable),
			strconv.FormatBool(r.IsRoleAccount),
			c.PlaylistName,
			c.Curator,
			c.SpotifyURL,
			c.Followers,
			c.Genres,
			strings.Join(r.Warnings, "; "),
			strings.Join(r.Errors, "; "),
		})
	}
	return writeCSV(ValidationColumns, rows)
}

// ValidationSummary tallies a validation run.
type ValidationSummary struct {
	Total        int
	Valid        int
	Invalid      int
	WithWarnings int
	Disposable   int
	RoleAccounts int
	NoMX         int
	TopDomains   []DomainCount
}

// DomainCount is how many addresses share a domain.
type DomainCount struct {
	Domain string
	Count  int
}

// Summarize tallies results and ranks the ten most common domains.
func Summarize(results []validator.Result) ValidationSummary {
	s := ValidationSummary{Total: len(results)}
	domains := make(map[string]int)
	for _, r := range results {
		if r.Valid {
			s.Valid++
		} else {
			s.Invalid++
		}
		if len(r.Warnings) > 0 {
			s.WithWarnings++
		}
		if r.IsDisposable {
			s.Disposable++
		}
		if r.IsRoleAccount {
			s.RoleAccounts++
		}
		if r.SyntaxValid && r.DomainExists && !r.HasMX {
			s.NoMX++
		}
		if d := r.Domain(); d != "" {
			domains[d]++
		}
	}

	for d, n := range domains {
		s.TopDomains = append(s.TopDomains, DomainCount{Domain: d, Count: n})
	}
	sort.Slice(s.TopDomains, func(i, j int) bool {
		a, b := s.TopDomains[i], s.TopDomains[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Domain < b.Domain
	})
	if len(s.TopDomains) > 10 {
		s.TopDomains = s.TopDomains[:10]
	}
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// WriteSummary prints s as plain text.
func WriteSummary(w io.Writer, s ValidationSummary) {
	fmt.Fprintf(w, "Total emails:     %d\n", s.Total)
	fmt.Fprintf(w, "Valid:            %d (%.1f%%)\n", s.Valid, percent(s.Valid, s.Total))
	fmt.Fprintf(w, "Invalid:          %d (%.1f%%)\n", s.Invalid, percent(s.Invalid, s.Total))
	fmt.Fprintf(w, "With warnings:    %d\n", s.WithWarnings)
	fmt.Fprintf(w, "Disposable:       %d\n", s.Disposable)
	fmt.Fprintf(w, "Role accounts:    %d\n", s.RoleAccounts)
	fmt.Fprintf(w, "No MX record:     %d\n", s.NoMX)

	if len(s.TopDomains) == 0 {
		return
	}
	fmt.Fprintf(w, "\nTop domains:\n")
	for _, d := range s.TopDomains {
		fmt.Fprintf(w, "  %-30s %d\n", d.Domain, d.Count)
	}
}

// BouncesToCSV renders bounces with [BounceColumns]. Dates are RFC 3339.
func BouncesToCSV(bounces []tasks.Bounce) ([]byte, error) {
	rows := make([][]string, 0, len(bounces))
	for _, b := range bounces {
		date := ""
		if !b.Date.IsZero() {
			date = b.Date.Format(time.RFC3339)
		}
		rows = append(rows, []string{b.Email, b.Reason, b.Subject, date, b.MessageID})
	}
	return writeCSV(BounceColumns, rows)
}

// ReadBounces reads a bounce report or a hand-maintained failures file. The email column is
// detected; the reason comes from a "reason" or "error_reason" column and defaults to
// [tasks.UnknownBounceReason]. Rows without an address are skipped.
func ReadBounces(list *csvlist.List) ([]tasks.Bounce, error) {
	if len(list.Rows) == 0 {
		return nil, nil
	}
	col, ok := list.EmailColumn()
	if !ok {
		return nil, fmt.Errorf("%w: could not determine email column", shared.ErrMissingColumn)
	}

	var bounces []tasks.Bounce
	for _, row := range list.Rows {
		email := shared.NormalizeEmail(row[col])
		if !strings.Contains(email, "@") {
			continue
		}
		b := tasks.Bounce{
			Email:     email,
			Reason:    firstNonEmpty(row["reason"], row["error_reason"], tasks.UnknownBounceReason),
			Subject:   row["subject"],
			MessageID: firstNonEmpty(row["message_id"], row["source"]),
		}
		if t, err := time.Parse(time.RFC3339, row["date"]); err == nil {
			b.Date = t
		}
		bounces = append(bounces, b)
	}
	return bounces, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
