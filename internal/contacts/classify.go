package contacts

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scan windows and length thresholds used by [Parse].
//
// The genre thresholds differ between the in-block test ([GenreMinLength]) and the stricter test
// applied to backward-scan candidates ([StrictGenreMinLength]); both are heuristics tuned on real
// exports rather than fixed rules.
const (
	SpotifyLookback  = 20 // lines searched above an email for its Spotify link
	CuratorLookback  = 10 // lines searched above the Spotify link for the curator
	PlaylistLookback = 5  // lines searched above the curator for the playlist name
	FallbackLookback = 15 // lines searched above an unclassified in-block line for a Spotify link

	GenreMinLength       = 5
	StrictGenreMinLength = 30
	CuratorMaxLength     = 80
	PlaylistMaxLength    = 100
)

// HeaderLabels are the column headings repeated on every page of the export.
var HeaderLabels = []string{"Playlist Name", "Curator", "Genres", "Followers", "Best Way To Contact"}

// GenreKeywords mark a line as genre text in the backward scan and on the email line.
var GenreKeywords = []string{
	"ROCK", "POP", "HIP", "HOP", "EDM", "INDIE", "ELECTRONIC",
	"FOLK", "SOUL", "R&B", "JAZZ", "BLUES", "PUNK", "METAL",
}

// ExtendedGenreKeywords is [GenreKeywords] plus the tags that only show up in the genre column.
var ExtendedGenreKeywords = append(slices.Clone(GenreKeywords),
	"ALTERNATIVE", "ACOUSTIC", "DANCE", "TRIPHOP", "CHILLWAVE",
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// FindEmail returns the first email-looking substring of line.
func FindEmail(line string) (string, bool) {
	m := emailPattern.FindString(line)
	return m, m != ""
}

// IsHeaderLabel reports whether line is exactly one of [HeaderLabels].
func IsHeaderLabel(line string) bool {
	return slices.Contains(HeaderLabels, line)
}

// IsNumericLine reports whether line is a bare count such as "1,200" or "12 500".
func IsNumericLine(line string) bool {
	stripped := strings.NewReplacer(",", "", " ", "").Replace(line)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsURL reports whether line starts with an http or https scheme.
func IsURL(line string) bool {
	return strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://")
}

// IsSpotifyLine reports whether line mentions a spotify.com host.
func IsSpotifyLine(line string) bool {
	return strings.Contains(strings.ToLower(line), "spotify.com")
}

// IsSpotifyPlaylistLine reports whether line is a Spotify link to a playlist.
func IsSpotifyPlaylistLine(line string) bool {
	return IsSpotifyLine(line) && strings.Contains(strings.ToLower(line), "/playlist/")
}

// IsInstagramLine reports whether line mentions an instagram.com host.
func IsInstagramLine(line string) bool {
	return strings.Contains(strings.ToLower(line), "instagram.com")
}

func containsKeyword(line string, keywords []string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// IsGenreLike reports whether an in-block line should be read as genre text: it contains one of
// [ExtendedGenreKeywords] and is longer than [GenreMinLength].
func IsGenreLike(line string) bool {
	return utf8.RuneCountInString(line) > GenreMinLength && containsKeyword(line, ExtendedGenreKeywords)
}

// IsStrictGenreLike is the conservative test used to reject backward-scan candidates: a keyword
// from [GenreKeywords] together with a comma or more than [StrictGenreMinLength] characters.
func IsStrictGenreLike(line string) bool {
	if !containsKeyword(line, GenreKeywords) {
		return false
	}
	return strings.Contains(line, ",") || utf8.RuneCountInString(line) > StrictGenreMinLength
}

// IsNameCandidate reports whether line could be a curator or playlist name of at most maxLen
// characters: not blank, not a link, email, count or header, and not genre text.
func IsNameCandidate(line string, maxLen int) bool {
	if !isPlainText(line, maxLen) {
		return false
	}
	return !IsStrictGenreLike(line)
}

// isLookbackCandidate is the tighter test for the short lookback from unclassified lines, which
// rejects any genre keyword at all.
func isLookbackCandidate(line string, maxLen int) bool {
	return isPlainText(line, maxLen) && !containsKeyword(line, ExtendedGenreKeywords)
}

func isPlainText(line string, maxLen int) bool {
	switch {
	case line == "":
		return false
	case utf8.RuneCountInString(line) >= maxLen:
		return false
	case strings.Contains(line, "@"):
		return false
	case strings.Contains(strings.ToLower(line), "spotify"):
		return false
	case strings.HasPrefix(line, "http"):
		return false
	case IsNumericLine(line):
		return false
	case IsHeaderLabel(line):
		return false
	}
	return true
}

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	repeatedCommas  = regexp.MustCompile(`,(\s*,)+`)
	trailingNumbers = regexp.MustCompile(`,\s*\d+[,\d]*\s*$`)
)

// cleanGenres collapses whitespace and duplicate commas and drops a trailing follower count
// that was mistaken for a genre fragment.
func cleanGenres(genres string) string {
	if genres == "" {
		return ""
	}
	g := strings.TrimSpace(whitespaceRun.ReplaceAllString(genres, " "))
	g = repeatedCommas.ReplaceAllString(g, ",")
	g = trailingNumbers.ReplaceAllString(g, "")
	return strings.TrimSpace(g)
}
