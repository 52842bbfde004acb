package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pitch/internal/services"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistFetched MsgKind = iota
)

type playlistFetched struct {
	email    string
	playlist *services.SpotifyPlaylist
	err      error
}

// playlistFetchedMsg is the constructor for [MsgPlaylistFetched]. email identifies the contact the
// lookup was started for, so late results for another contact are dropped.
func playlistFetchedMsg(email string, playlist *services.SpotifyPlaylist, err error) Msg {
	return Msg{kind: MsgPlaylistFetched, data: playlistFetched{email: email, playlist: playlist, err: err}}
}
