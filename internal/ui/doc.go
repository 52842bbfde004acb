// Package ui implements the interactive contact browser using bubbletea's Elm architecture.
//
// The browser has two views:
//  1. [ContactListView] : Filterable list of parsed contacts (playlist, curator and email are searchable)
//  2. [DetailView] : Every field of the selected contact, with an optional Spotify lookup
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving asynchronous results via the [Msg] union type.
//
// Keyboard navigation uses vim-style bindings (j/k, /, enter, esc, s, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
