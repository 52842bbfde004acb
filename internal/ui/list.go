package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/pitch/internal/contacts"
)

var (
	_ list.Item = contactItem{}
)

// contactItem wraps [contacts.ContactRecord] to implement [list.Item].
type contactItem struct {
	contact contacts.ContactRecord
}

// FilterValue makes playlist, curator and email searchable.
func (i contactItem) FilterValue() string {
	return strings.Join([]string{i.contact.PlaylistName, i.contact.Curator, i.contact.Email}, " ")
}

func (i contactItem) Title() string {
	switch {
	case i.contact.PlaylistName != "":
		return i.contact.PlaylistName
	case i.contact.Curator != "":
		return i.contact.Curator
	case i.contact.Email != "":
		return i.contact.Email
	}
	return "(unnamed playlist)"
}

func (i contactItem) Description() string {
	var parts []string
	for _, v := range []string{i.contact.Curator, i.contact.Email} {
		if v != "" && v != i.Title() {
			parts = append(parts, v)
		}
	}
	if i.contact.Followers != "" {
		parts = append(parts, i.contact.Followers+" followers")
	}
	if len(parts) == 0 {
		return i.contact.SpotifyURL
	}
	return strings.Join(parts, " • ")
}

func contactItems(records []contacts.ContactRecord) []list.Item {
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = contactItem{contact: r}
	}
	return items
}
