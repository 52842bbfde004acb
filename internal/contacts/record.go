package contacts

// ContactRecord is one playlist/curator entity recovered from the text stream.
//
// Every field except Email is best effort and may be empty.
type ContactRecord struct {
	Email        string   `json:"email"`
	PlaylistName string   `json:"playlist_name,omitempty"`
	Curator      string   `json:"curator,omitempty"`
	Genres       string   `json:"genres,omitempty"`
	SpotifyURL   string   `json:"spotify_url,omitempty"`
	Followers    string   `json:"followers,omitempty"`
	Instagram    string   `json:"instagram,omitempty"`
	OtherLinks   []string `json:"other_links,omitempty"`
}

// Retained reports whether r carries enough to be emitted: an email or a Spotify link.
func (r ContactRecord) Retained() bool {
	return r.Email != "" || r.SpotifyURL != ""
}

// Clone returns a copy of r that shares no slice storage with it.
func (r ContactRecord) Clone() ContactRecord {
	c := r
	if r.OtherLinks != nil {
		c.OtherLinks = append([]string(nil), r.OtherLinks...)
	}
	return c
}

// pending holds fields seen before their record's email anchor.
//
// A block is open once a Spotify link has been staged; numeric and genre lines only stage
// while a block is open.
type pending struct {
	playlistName string
	curator      string
	spotifyURL   string
	followers    string
	genres       string
	instagram    string
}

func (p *pending) open() bool { return p.spotifyURL != "" }

func (p *pending) reset() { *p = pending{} }

// applyTo copies staged fields onto r. Staged values win over anything already on r.
func (p *pending) applyTo(r *ContactRecord) {
	if p.playlistName != "" {
		r.PlaylistName = p.playlistName
	}
	if p.curator != "" {
		r.Curator = p.curator
	}
	if p.spotifyURL != "" {
		r.SpotifyURL = p.spotifyURL
	}
	if p.followers != "" {
		r.Followers = p.followers
	}
	if p.genres != "" {
		r.Genres = p.genres
	}
	if p.instagram != "" {
		r.Instagram = p.instagram
	}
}

func appendGenre(existing, fragment string) string {
	if existing == "" {
		return fragment
	}
	return existing + ", " + fragment
}
