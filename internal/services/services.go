// package services defines the HTTP API clients used by campaigns
//
// Gmail (drafts, sending, bounce search), Spotify (playlist metadata)
package services

import (
	"context"
	"time"
)

// Mailer creates drafts or sends messages on behalf of the authenticated account.
type Mailer interface {
	// CreateDraft stores e as a draft and returns the draft ID.
	CreateDraft(ctx context.Context, e Email) (string, error)

	// Send delivers e immediately and returns the message ID.
	Send(ctx context.Context, e Email) (string, error)
}

// MailboxReader searches and fetches messages from the authenticated mailbox.
type MailboxReader interface {
	// ListMessages returns up to max message references matching a Gmail search query.
	ListMessages(ctx context.Context, query string, max int) ([]MessageRef, error)

	// GetMessage fetches one message in raw RFC 5322 form.
	GetMessage(ctx context.Context, id string) (*RawMessage, error)
}

// PlaylistLookup resolves playlist metadata by Spotify playlist ID.
type PlaylistLookup interface {
	Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error)
}

// Email is an outgoing message.
type Email struct {
	From    string
	To      string
	CC      []string
	Subject string
	HTML    string // optional; when set the message is multipart/alternative
	Plain   string
	Date    time.Time
}

// MessageRef identifies a message returned by a search.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// RawMessage is a fetched message with its decoded RFC 5322 bytes.
type RawMessage struct {
	ID       string
	ThreadID string
	Snippet  string
	Raw      []byte
}
