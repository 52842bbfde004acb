package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ContactListView ViewState = iota
	DetailView
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	lookup   services.PlaylistLookup
	width    int
	height   int
	list     list.Model
	selected *contacts.ContactRecord
	playlist *services.SpotifyPlaylist
	loading  bool
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a browser over records. lookup may be nil, which disables Spotify lookups.
func NewModel(ctx context.Context, records []contacts.ContactRecord, lookup services.PlaylistLookup) *Model {
	m := &Model{
		ctx:    ctx,
		view:   ContactListView,
		lookup: lookup,
		help:   help.New(),
		keys:   newKeyMap(),
	}
	m.list = list.New(contactItems(records), list.NewDefaultDelegate(), 0, 0)
	m.list.Title = fmt.Sprintf("Playlist Contacts (%d)", len(records))
	m.list.SetShowHelp(false)
	return m
}

// Run starts the browser on the alternate screen and blocks until it exits.
func Run(ctx context.Context, records []contacts.ContactRecord, lookup services.PlaylistLookup) error {
	p := tea.NewProgram(NewModel(ctx, records, lookup), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init implements [tea.Model]. The contacts are already loaded, so there is nothing to fetch.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ContactListView:
			return m.handleListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgPlaylistFetched:
			data := msg.data.(playlistFetched)
			if m.selected == nil || data.email != m.selected.Email {
				return m, nil
			}
			m.loading = false
			m.playlist, m.err = data.playlist, data.err
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.view == ContactListView {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ContactListView:
		return m.renderList()
	case DetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// typed characters belong to the filter input while it is open
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.list.SelectedItem().(contactItem); ok {
			c := item.contact.Clone()
			m.selected = &c
			m.playlist, m.err, m.loading = nil, nil, false
			m.view = DetailView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ContactListView
		m.selected, m.playlist, m.err, m.loading = nil, nil, nil, false
		return m, nil
	case key.Matches(msg, m.keys.lookup):
		if m.canLookup() && !m.loading {
			m.loading, m.err = true, nil
			return m, m.fetchPlaylist(*m.selected)
		}
	}
	return m, nil
}

func (m *Model) canLookup() bool {
	return m.lookup != nil && m.selected != nil && m.selected.SpotifyURL != ""
}

func (m *Model) fetchPlaylist(c contacts.ContactRecord) tea.Cmd {
	return func() tea.Msg {
		id, err := services.PlaylistIDFromURL(c.SpotifyURL)
		if err != nil {
			return playlistFetchedMsg(c.Email, nil, err)
		}
		playlist, err := m.lookup.Playlist(m.ctx, id)
		return playlistFetchedMsg(c.Email, playlist, err)
	}
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.filter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.list.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	c := m.selected

	title := styles.title.Render(contactItem{contact: *c}.Title())

	var rows []string
	field := func(label, value string) {
		if value == "" {
			value = styles.help.Render("none")
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, styles.label.Render(label), value))
	}
	field("Email", c.Email)
	field("Curator", c.Curator)
	field("Genres", c.Genres)
	field("Followers", c.Followers)
	field("Spotify", c.SpotifyURL)
	field("Instagram", c.Instagram)
	field("Links", strings.Join(c.OtherLinks, "\n"))

	body := styles.card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	var status string
	switch {
	case m.loading:
		status = styles.warn.Render("Looking up playlist on Spotify...")
	case m.err != nil:
		status = styles.err.Render(fmt.Sprintf("Lookup failed: %v", m.err))
	case m.playlist != nil:
		status = m.renderPlaylist()
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	if m.canLookup() {
		helpKeys = []key.Binding{m.keys.lookup, m.keys.back, m.keys.quit}
	}
	helpView := m.help.ShortHelpView(helpKeys)

	if status == "" {
		return fmt.Sprintf("%s\n%s\n\n%s", title, body, helpView)
	}
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, body, status, helpView)
}

func (m *Model) renderPlaylist() string {
	p := m.playlist
	lines := []string{
		styles.ok.Render("✓ " + p.Name),
		fmt.Sprintf("Owner: %s", p.Owner.DisplayName),
		fmt.Sprintf("Followers: %s", tasks.FormatFollowers(p.FollowerCount())),
	}
	if p.Description != "" {
		lines = append(lines, p.Description)
	}
	return strings.Join(lines, "\n")
}
