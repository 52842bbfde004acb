package contacts

import "strings"

// parser is the state of one [Parse] call.
type parser struct {
	lines   []string
	records []ContactRecord

	current *ContactRecord
	pend    pending

	// anchor is the index of the current record's email line, -1 before the first anchor.
	anchor int
	// floor is the first line that may contribute to the current record.
	floor int
}

// Parse reconstructs contact records from trimmed text lines.
//
// Records are returned in the order their email anchors appear. A Spotify playlist link that
// trails the last anchor without an email of its own is returned as a final Spotify-only record.
// Every returned record has an email or a Spotify link. Duplicate emails are kept.
func Parse(lines []string) []ContactRecord {
	p := &parser{lines: lines, anchor: -1}
	for i, line := range lines {
		p.step(i, line)
	}
	p.finish()
	return p.records
}

func (p *parser) step(i int, line string) {
	if line == "" || IsHeaderLabel(line) {
		return
	}

	if email, ok := FindEmail(line); ok {
		p.anchorAt(i, line, email)
		return
	}

	switch {
	case IsSpotifyLine(line):
		p.spotify(line)
	case IsInstagramLine(line):
		p.instagram(line)
	case IsNumericLine(line):
		p.followers(line)
	case IsURL(line):
		if p.current != nil && !p.pend.open() {
			p.current.OtherLinks = append(p.current.OtherLinks, line)
		}
	case p.inBlock():
		p.blockLine(i, line)
	}
}

func (p *parser) inBlock() bool {
	return p.current != nil || p.pend.open()
}

// anchorAt seals the in-progress record and starts a new one at line i.
func (p *parser) anchorAt(i int, line, email string) {
	p.seal()

	floor := p.anchor + 1
	rec := &ContactRecord{Email: email}
	p.pend.applyTo(rec)
	p.pend.reset()
	p.fillFromAbove(rec, floor, i)

	residual := strings.TrimSpace(strings.ReplaceAll(line, email, ""))
	if residual != "" && !IsNumericLine(residual) && !IsHeaderLabel(residual) {
		rec.Genres = appendGenre(rec.Genres, residual)
	}

	p.current = rec
	p.anchor = i
	p.floor = floor
}

// fillFromAbove recovers curator and playlist name from the lines above the Spotify link that
// precedes start. Only empty fields are filled.
func (p *parser) fillFromAbove(rec *ContactRecord, floor, start int) {
	spotifyIdx, ok := findNearestAbove(p.lines, floor, start, IsSpotifyLine, SpotifyLookback)
	if !ok {
		return
	}

	curatorIdx, ok := findNearestAbove(p.lines, floor, spotifyIdx, func(s string) bool {
		return IsNameCandidate(s, CuratorMaxLength)
	}, CuratorLookback)
	if !ok {
		return
	}
	if rec.Curator == "" {
		rec.Curator = p.lines[curatorIdx]
	}

	playlistIdx, ok := findNearestAbove(p.lines, floor, curatorIdx, func(s string) bool {
		return IsNameCandidate(s, PlaylistMaxLength)
	}, PlaylistLookback)
	if ok && rec.PlaylistName == "" {
		rec.PlaylistName = p.lines[playlistIdx]
	}
}

func (p *parser) spotify(line string) {
	switch {
	case p.pend.open():
		// A new playlist link means the staged block never got an email.
		if IsSpotifyPlaylistLine(line) {
			p.pend.reset()
			p.pend.spotifyURL = line
		}
	case p.current == nil:
		p.pend.spotifyURL = line
	case p.current.SpotifyURL == "":
		p.current.SpotifyURL = line
	case IsSpotifyPlaylistLine(line):
		p.pend.spotifyURL = line
	default:
		p.current.OtherLinks = append(p.current.OtherLinks, line)
	}
}

func (p *parser) instagram(line string) {
	switch {
	case p.pend.open() || p.current == nil:
		if p.pend.instagram == "" {
			p.pend.instagram = line
		}
	case p.current.Instagram == "":
		p.current.Instagram = line
	default:
		p.current.OtherLinks = append(p.current.OtherLinks, line)
	}
}

func (p *parser) followers(line string) {
	switch {
	case p.pend.open():
		if p.pend.followers == "" {
			p.pend.followers = line
		}
	case p.current != nil:
		if p.current.Followers == "" {
			p.current.Followers = line
		}
	}
}

// blockLine handles a line inside a record block that is not a link, count or email: genre text
// is collected, and the lines right above the nearest Spotify link are offered as curator and
// playlist name.
func (p *parser) blockLine(i int, line string) {
	staging := p.pend.open()

	if IsGenreLike(line) {
		if staging {
			p.pend.genres = appendGenre(p.pend.genres, line)
		} else {
			p.current.Genres = appendGenre(p.current.Genres, line)
		}
	}

	floor := p.floor
	if staging {
		floor = p.anchor + 1
	}
	spotifyIdx, ok := findNearestAbove(p.lines, floor, i, IsSpotifyLine, FallbackLookback)
	if !ok {
		return
	}

	var curator, playlist string
	if c := spotifyIdx - 1; c >= floor && isLookbackCandidate(p.lines[c], CuratorMaxLength) {
		curator = p.lines[c]
	}
	if pl := spotifyIdx - 2; pl >= floor && isLookbackCandidate(p.lines[pl], PlaylistMaxLength) {
		playlist = p.lines[pl]
	}

	if staging {
		if p.pend.curator == "" {
			p.pend.curator = curator
		}
		if p.pend.playlistName == "" {
			p.pend.playlistName = playlist
		}
		return
	}
	if p.current.Curator == "" {
		p.current.Curator = curator
	}
	if p.current.PlaylistName == "" {
		p.current.PlaylistName = playlist
	}
}

func (p *parser) seal() {
	if p.current == nil {
		return
	}
	if p.current.Retained() {
		rec := *p.current
		rec.Genres = cleanGenres(rec.Genres)
		p.records = append(p.records, rec)
	}
	p.current = nil
}

func (p *parser) finish() {
	p.seal()
	if !p.pend.open() {
		return
	}
	floor := p.anchor + 1
	rec := &ContactRecord{}
	p.pend.applyTo(rec)
	p.pend.reset()
	p.fillFromAbove(rec, floor, len(p.lines))
	p.current = rec
	p.seal()
}
