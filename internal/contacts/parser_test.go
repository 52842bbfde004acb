package contacts

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var coolMix = []string{
	"Cool Mix",
	"Jane Doe",
	"https://open.spotify.com/playlist/x",
	"POP, INDIE",
	"1,200",
	"jane@example.com",
}

func twoBlocks() []string {
	return []string{
		"Playlist Name",
		"Curator",
		"Mix A",
		"Curator A",
		"https://open.spotify.com/playlist/a",
		"POP, ROCK",
		"100",
		"a@example.com",
		"Mix B",
		"Curator B",
		"https://open.spotify.com/playlist/b",
		"FOLK, SOUL",
		"200",
		"b@example.com",
	}
}

func TestParse(t *testing.T) {
	t.Run("Pending Fields Transfer To Anchor", func(t *testing.T) {
		got := Parse(coolMix)
		want := []ContactRecord{{
			Email:        "jane@example.com",
			PlaylistName: "Cool Mix",
			Curator:      "Jane Doe",
			Genres:       "POP, INDIE",
			SpotifyURL:   "https://open.spotify.com/playlist/x",
			Followers:    "1,200",
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		lines := twoBlocks()
		first := Parse(lines)
		second := Parse(lines)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("second parse differs (-first +second):\n%s", diff)
		}
	})

	t.Run("Multi Record Split", func(t *testing.T) {
		got := Parse(twoBlocks())
		want := []ContactRecord{
			{
				Email:        "a@example.com",
				PlaylistName: "Mix A",
				Curator:      "Curator A",
				Genres:       "POP, ROCK",
				SpotifyURL:   "https://open.spotify.com/playlist/a",
				Followers:    "100",
			},
			{
				Email:        "b@example.com",
				PlaylistName: "Mix B",
				Curator:      "Curator B",
				Genres:       "FOLK, SOUL",
				SpotifyURL:   "https://open.spotify.com/playlist/b",
				Followers:    "200",
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Anchor Ordering", func(t *testing.T) {
		lines := append(twoBlocks(), "Mix Z", "Curator Z", "https://open.spotify.com/playlist/z", "JAZZ, BLUES", "c@example.com")
		lines = append(lines, "Mix Y", "https://open.spotify.com/playlist/y", "ROCK, PUNK, METAL")
		got := Parse(lines)

		var order []string
		for _, r := range got {
			order = append(order, r.Email+"|"+r.SpotifyURL)
		}
		want := []string{
			"a@example.com|https://open.spotify.com/playlist/a",
			"b@example.com|https://open.spotify.com/playlist/b",
			"c@example.com|https://open.spotify.com/playlist/z",
			"|https://open.spotify.com/playlist/y",
		}
		if diff := cmp.Diff(want, order); diff != "" {
			t.Errorf("record order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Email Only Record Adopts Next Link", func(t *testing.T) {
		got := Parse([]string{"c@example.com", "https://open.spotify.com/playlist/z"})
		if len(got) != 1 || got[0].SpotifyURL != "https://open.spotify.com/playlist/z" {
			t.Errorf("expected the link on the anchored record, got %+v", got)
		}
	})

	t.Run("Trailing Spotify Only Record", func(t *testing.T) {
		lines := append(slices.Clone(coolMix), "Mix Z", "Curator Z", "https://open.spotify.com/playlist/z", "JAZZ, BLUES")
		got := Parse(lines)
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
		}
		want := ContactRecord{
			PlaylistName: "Mix Z",
			Curator:      "Curator Z",
			Genres:       "JAZZ, BLUES",
			SpotifyURL:   "https://open.spotify.com/playlist/z",
		}
		if diff := cmp.Diff(want, got[1]); diff != "" {
			t.Errorf("trailing record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Retention Invariant", func(t *testing.T) {
		lines := []string{
			"Random Heading",
			"42",
			"https://example.com/about",
			"INDIE, POP, FOLK",
			"Some Curator",
		}
		lines = append(lines, twoBlocks()...)
		lines = append(lines, "trailing text", "7")
		for _, r := range Parse(lines) {
			if !r.Retained() {
				t.Errorf("record without email or spotify link emitted: %+v", r)
			}
		}
		if got := Parse(lines[:5]); len(got) != 0 {
			t.Errorf("expected noise-only input to produce no records, got %+v", got)
		}
	})

	t.Run("Header Label Immunity", func(t *testing.T) {
		lines := []string{
			"Playlist Name", "Curator", "Genres", "Followers", "Best Way To Contact",
			"Cool Mix",
			"Curator",
			"Jane Doe",
			"Playlist Name",
			"https://open.spotify.com/playlist/x",
			"Genres",
			"POP, INDIE",
			"Followers",
			"1,200",
			"Best Way To Contact",
			"Curator jane@example.com",
			"Playlist Name",
			"Curator",
			"https://open.spotify.com/playlist/y",
			"Best Way To Contact",
			"kim@example.com",
		}
		for _, r := range Parse(lines) {
			fields := []string{r.Email, r.PlaylistName, r.Curator, r.Genres, r.SpotifyURL, r.Followers, r.Instagram}
			fields = append(fields, r.OtherLinks...)
			for _, f := range fields {
				if IsHeaderLabel(f) {
					t.Errorf("header label %q leaked into record %+v", f, r)
				}
			}
		}
	})

	t.Run("Noise Rejection", func(t *testing.T) {
		if got := Parse([]string{"42"}); len(got) != 0 {
			t.Fatalf("expected no records for a lone page number, got %+v", got)
		}

		lines := append([]string{"42", ""}, coolMix...)
		got := Parse(lines)
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].Followers != "1,200" {
			t.Errorf("expected followers 1,200, got %q", got[0].Followers)
		}

		lines = []string{"42", "Cool Mix", "Jane Doe", "https://open.spotify.com/playlist/x", "jane@example.com"}
		got = Parse(lines)
		if len(got) != 1 || got[0].Followers != "" {
			t.Errorf("page number should not become followers, got %+v", got)
		}
	})

	t.Run("Followers Never Overwritten", func(t *testing.T) {
		lines := []string{"https://open.spotify.com/playlist/x", "1,200", "3,400", "jane@example.com", "99"}
		got := Parse(lines)
		if len(got) != 1 || got[0].Followers != "1,200" {
			t.Errorf("expected first follower count to stick, got %+v", got)
		}

		lines = []string{"jane@example.com", "500", "600"}
		got = Parse(lines)
		if len(got) != 1 || got[0].Followers != "500" {
			t.Errorf("expected post-anchor follower count 500, got %+v", got)
		}
	})

	t.Run("Backward Scan Skips Blank Cells", func(t *testing.T) {
		lines := []string{"Cool Mix", "", "Jane Doe", "", "https://open.spotify.com/playlist/x", "", "jane@example.com"}
		got := Parse(lines)
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].Curator != "Jane Doe" || got[0].PlaylistName != "Cool Mix" {
			t.Errorf("expected scan to recover curator and playlist, got %+v", got[0])
		}
	})

	t.Run("Backward Scan Rejects Genre Text", func(t *testing.T) {
		lines := []string{"Cool Mix", "INDIE, POP", "https://open.spotify.com/playlist/x", "jane@example.com"}
		got := Parse(lines)
		if got[0].Curator != "Cool Mix" {
			t.Errorf("expected genre line skipped and Cool Mix taken as curator, got %+v", got[0])
		}
	})

	t.Run("Pending Wins Over Scan", func(t *testing.T) {
		lines := []string{
			"Mix One",
			"Real Curator",
			"https://open.spotify.com/playlist/one",
			"INDIE POP, FOLK",
			"Profile Owner",
			"https://open.spotify.com/user/someone",
			"one@example.com",
		}
		got := Parse(lines)
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].Curator != "Real Curator" {
			t.Errorf("expected staged curator to win, got %q", got[0].Curator)
		}
		if got[0].PlaylistName != "Mix One" {
			t.Errorf("expected staged playlist to win, got %q", got[0].PlaylistName)
		}
	})

	t.Run("Scan Does Not Cross Previous Anchor", func(t *testing.T) {
		lines := []string{
			"Mix A",
			"Curator A",
			"https://open.spotify.com/playlist/a",
			"a@example.com",
			"b@example.com",
		}
		got := Parse(lines)
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		want := ContactRecord{Email: "b@example.com"}
		if diff := cmp.Diff(want, got[1]); diff != "" {
			t.Errorf("second record picked up fields from the first (-want +got):\n%s", diff)
		}
	})

	t.Run("Email Line Residual", func(t *testing.T) {
		tc := []struct {
			name string
			line string
			want string
		}{
			{name: "genre residual", line: "jane@example.com POP, FOLK", want: "POP, FOLK"},
			{name: "numeric residual", line: "jane@example.com 1,200", want: ""},
			{name: "no residual", line: "jane@example.com", want: ""},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				got := Parse([]string{tt.line})
				if len(got) != 1 {
					t.Fatalf("expected 1 record, got %d", len(got))
				}
				if got[0].Email != "jane@example.com" {
					t.Errorf("expected email jane@example.com, got %q", got[0].Email)
				}
				if got[0].Genres != tt.want {
					t.Errorf("genres = %q, want %q", got[0].Genres, tt.want)
				}
			})
		}
	})

	t.Run("Links After Anchor", func(t *testing.T) {
		lines := []string{
			"jane@example.com",
			"https://open.spotify.com/playlist/x",
			"https://open.spotify.com/user/jane",
			"https://instagram.com/jane",
			"https://instagram.com/janes_mixes",
			"https://janedoe.example.com/submit",
		}
		got := Parse(lines)
		want := []ContactRecord{{
			Email:      "jane@example.com",
			SpotifyURL: "https://open.spotify.com/playlist/x",
			Instagram:  "https://instagram.com/jane",
			OtherLinks: []string{
				"https://open.spotify.com/user/jane",
				"https://instagram.com/janes_mixes",
				"https://janedoe.example.com/submit",
			},
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Generic Links Before Anchor Dropped", func(t *testing.T) {
		lines := []string{"https://janedoe.example.com", "https://open.spotify.com/playlist/x", "https://linktr.ee/jane", "jane@example.com"}
		got := Parse(lines)
		if len(got) != 1 || len(got[0].OtherLinks) != 0 {
			t.Errorf("expected no other links, got %+v", got)
		}
	})

	t.Run("Instagram Staged Before Anchor", func(t *testing.T) {
		lines := []string{"https://open.spotify.com/playlist/x", "https://www.instagram.com/jane", "jane@example.com"}
		got := Parse(lines)
		if len(got) != 1 || got[0].Instagram != "https://www.instagram.com/jane" {
			t.Errorf("expected staged instagram, got %+v", got)
		}
	})

	t.Run("Abandoned Pending Block", func(t *testing.T) {
		lines := []string{
			"https://open.spotify.com/playlist/orphan",
			"EDM, DANCE",
			"9,999",
			"Mix B",
			"Curator B",
			"https://open.spotify.com/playlist/b",
			"b@example.com",
		}
		got := Parse(lines)
		want := []ContactRecord{{
			Email:        "b@example.com",
			PlaylistName: "Mix B",
			Curator:      "Curator B",
			SpotifyURL:   "https://open.spotify.com/playlist/b",
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Genres Cleaned", func(t *testing.T) {
		lines := []string{
			"jane@example.com",
			"INDIE,,   POP",
			"FOLK   ACOUSTIC",
		}
		got := Parse(lines)
		if got[0].Genres != "INDIE, POP, FOLK ACOUSTIC" {
			t.Errorf("unexpected genres %q", got[0].Genres)
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		if got := Parse(nil); len(got) != 0 {
			t.Errorf("expected no records, got %+v", got)
		}
	})
}
