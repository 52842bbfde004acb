// Package templates renders outreach messages from a markdown template with <<placeholder>> slots.
//
// A template file carries documentation around the message itself: the message body starts after
// the first "---" line and ends at an "Available Placeholders" or "Example Usage" section. A
// "**Subject:** ..." line anywhere in the file sets the subject line.
package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/shared"
)

// DefaultCustomMessage fills <<custom_message>> when no message is configured.
const DefaultCustomMessage = "I hope this email finds you well. I'm reaching out because I believe my music would be a great fit for your playlist."

var (
	placeholderPattern = regexp.MustCompile(`<<(\w+)>>`)
	subjectPattern     = regexp.MustCompile(`(?m)^[ \t]*\*\*Subject:\*\*[ \t]*(.*?)[ \t]*$`)
	emptyFieldPattern  = regexp.MustCompile(`^\s*(?:[-*]\s+)?\*\*[^*]+:\*\*\s*(?:N/A|\[[^\]]*\])\s*$`)
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)
)

// bodyStops end the message body.
var bodyStops = []string{"Available Placeholders", "Example Usage"}

// Template is a parsed message template.
type Template struct {
	Body    string // message body with placeholders, subject line removed
	Subject string // subject line template, empty when the file has none
}

// Artist describes the sender.
type Artist struct {
	Name        string
	SpotifyLink string
	Instagram   string
	Website     string
}

// Options are the free-text values merged with each contact.
type Options struct {
	Artist         Artist
	CustomMessage  string
	AdditionalInfo string
	Subject        string // overrides the generated subject
}

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
	Plain   string
}

// Load reads and parses the template at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Parse(string(data))
}

// Parse extracts the message body and subject from template content. Content without a "---"
// separator is used as the body in full.
func Parse(content string) (*Template, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	t := &Template{}
	if m := subjectPattern.FindStringSubmatch(content); m != nil {
		t.Subject = m[1]
	}

	lines := strings.Split(content, "\n")
	start := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "---") {
			start = i + 1
			break
		}
	}

	var body []string
	for _, line := range lines[start:] {
		if containsAny(line, bodyStops) {
			break
		}
		if subjectPattern.MatchString(line) {
			continue
		}
		body = append(body, line)
	}

	t.Body = strings.TrimSpace(strings.Join(body, "\n"))
	// a trailing separator before the documentation section belongs to the docs
	t.Body = strings.TrimSpace(strings.TrimSuffix(t.Body, "---"))
	if t.Body == "" {
		return nil, shared.ErrEmptyTemplate
	}
	return t, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Subject picks the subject line: the override, else one naming the playlist, else the curator.
func Subject(c contacts.ContactRecord, override string) string {
	switch {
	case override != "":
		return override
	case c.PlaylistName != "":
		return "Music Submission for " + c.PlaylistName
	case c.Curator != "":
		return "Music Submission - " + c.Curator
	default:
		return "Music Submission"
	}
}

// Values returns the placeholder values for c, with defaults for anything missing.
func Values(c contacts.ContactRecord, opts Options) map[string]string {
	return map[string]string{
		"subject":             Subject(c, opts.Subject),
		"curator_name":        or(c.Curator, "there"),
		"custom_message":      or(opts.CustomMessage, DefaultCustomMessage),
		"playlist_name":       or(c.PlaylistName, "your playlist"),
		"genres":              or(FilterRelevantGenres(c.Genres), "various genres"),
		"followers":           or(c.Followers, "N/A"),
		"spotify_url":         or(c.SpotifyURL, "N/A"),
		"instagram":           or(c.Instagram, "N/A"),
		"artist_name":         or(opts.Artist.Name, "[Your Name]"),
		"additional_info":     opts.AdditionalInfo,
		"artist_spotify_link": or(opts.Artist.SpotifyLink, "[Your Spotify Link]"),
		"artist_instagram":    or(opts.Artist.Instagram, "[Your Instagram]"),
		"artist_website":      or(opts.Artist.Website, "[Your Website]"),
	}
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// Fill substitutes known placeholders in s. Unknown placeholders are left in place.
func Fill(s string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := m[2 : len(m)-2]
		if v, ok := values[key]; ok {
			return v
		}
		return m
	})
}

// dropEmptyFields removes "**Label:** N/A" and "**Label:** [placeholder]" lines.
func dropEmptyFields(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if emptyFieldPattern.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return blankRunPattern.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
}

// Render produces the message for one contact.
func (t *Template) Render(c contacts.ContactRecord, opts Options) (Message, error) {
	values := Values(c, opts)

	subject := values["subject"]
	if opts.Subject == "" && t.Subject != "" && t.Subject != "<<subject>>" {
		subject = strings.TrimSpace(Fill(t.Subject, values))
	}

	plain := strings.TrimSpace(dropEmptyFields(Fill(t.Body, values)))
	html, err := ToHTML(plain)
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html, Plain: plain}, nil
}
