package templates

import "strings"

// RelevantGenres are the genre fragments worth mentioning in a pitch.
var RelevantGenres = []string{
	"pop", "indie", "americana", "folk", "acoustic", "singer", "songwriter",
	"soft", "alternative", "country", "roots", "bluegrass", "soul", "r&b",
	"jazz", "blues", "ballad", "melodic", "chill", "ambient",
}

// ExcludedGenres are fragments dropped from a pitch even when they also match [RelevantGenres].
var ExcludedGenres = []string{
	"rap", "hip hop", "edm", "electronic", "rock", "metal", "punk", "hardcore",
	"techno", "house", "dance", "trance", "dubstep", "brostep", "grunge",
	"hard rock", "heavy metal", "death metal", "thrash",
}

func containsFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// FilterRelevantGenres keeps the comma-separated fragments of genres that match
// [RelevantGenres] and none of [ExcludedGenres]. When nothing survives, genres is returned as is.
func FilterRelevantGenres(genres string) string {
	if strings.TrimSpace(genres) == "" {
		return ""
	}

	var kept []string
	for _, g := range strings.Split(genres, ",") {
		g = strings.TrimSpace(g)
		if g == "" || containsFold(g, ExcludedGenres) {
			continue
		}
		if containsFold(g, RelevantGenres) {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 {
		return genres
	}
	return strings.Join(kept, ", ")
}

// MatchesGenres reports whether a contact's genres pass a campaign filter: no exclude keyword
// may appear, and when include keywords are given at least one must.
func MatchesGenres(genres string, include, exclude []string) bool {
	if containsFold(genres, exclude) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	return containsFold(genres, include)
}
