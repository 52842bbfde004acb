// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
)

var (
	_ services.Mailer         = (*MockMailer)(nil)
	_ services.MailboxReader  = (*MockMailbox)(nil)
	_ services.PlaylistLookup = (*MockLookup)(nil)
)

// MockMailer is a test double for [services.Mailer]. Messages to an address in FailFor fail
// with the mapped error.
type MockMailer struct {
	mu      sync.Mutex
	Drafts  []services.Email
	Sent    []services.Email
	FailFor map[string]error
}

func (m *MockMailer) deliver(box *[]services.Email, e services.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailFor[e.To]; ok {
		return "", err
	}
	*box = append(*box, e)
	return fmt.Sprintf("id-%d", len(*box)), nil
}

func (m *MockMailer) CreateDraft(ctx context.Context, e services.Email) (string, error) {
	return m.deliver(&m.Drafts, e)
}

func (m *MockMailer) Send(ctx context.Context, e services.Email) (string, error) {
	return m.deliver(&m.Sent, e)
}

// MockMailbox is a test double for [services.MailboxReader] serving raw messages by ID.
// It records the last search.
type MockMailbox struct {
	Query string
	Max   int
	Refs  []services.MessageRef
	Raw   map[string]string
}

func (m *MockMailbox) ListMessages(ctx context.Context, query string, max int) ([]services.MessageRef, error) {
	m.Query, m.Max = query, max
	return m.Refs, nil
}

func (m *MockMailbox) GetMessage(ctx context.Context, id string) (*services.RawMessage, error) {
	raw, ok := m.Raw[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrMessageNotFound, id)
	}
	return &services.RawMessage{ID: id, Raw: []byte(raw)}, nil
}

// MockLookup is a test double for [services.PlaylistLookup]. Unknown IDs return
// [shared.ErrPlaylistNotFound]; Err, when set, is returned for every lookup.
type MockLookup struct {
	mu        sync.Mutex
	Playlists map[string]*services.SpotifyPlaylist
	Err       error
	Calls     []string
}

func (m *MockLookup) Playlist(ctx context.Context, id string) (*services.SpotifyPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, id)
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return p, nil
}

// NewPlaylist builds a playlist with an owner and follower count.
func NewPlaylist(id, name, owner string, followers int) *services.SpotifyPlaylist {
	p := &services.SpotifyPlaylist{ID: id, Name: name}
	p.Owner.DisplayName = owner
	p.Followers.Total = followers
	return p
}

// BounceMessage builds a plain-text delivery failure from the mailer daemon.
func BounceMessage(subject, date, body string) string {
	return "From: Mail Delivery Subsystem <mailer-daemon@googlemail.com>\r\n" +
		"To: me@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + date + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body + "\r\n"
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
