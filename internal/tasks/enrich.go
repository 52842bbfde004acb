package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/time/rate"
)

// EnrichOpts configures playlist lookups.
type EnrichOpts struct {
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Requests per second (default: 5)
}

// EnrichOutcome is the lookup result for one record.
type EnrichOutcome struct {
	Index      int
	PlaylistID string
	Updated    bool
	Err        error
}

// EnrichResult holds enriched copies of the input records.
type EnrichResult struct {
	Records  []contacts.ContactRecord
	Looked   int // records with a playlist link
	Updated  int // records that gained at least one field
	Failed   int
	Outcomes []EnrichOutcome
}

type enrichJob struct {
	index      int
	playlistID string
}

var followerPrinter = message.NewPrinter(language.English)

// FormatFollowers renders a follower count the way contact sheets list them, e.g. "12,345".
func FormatFollowers(n int) string {
	return followerPrinter.Sprintf("%d", n)
}

// Enrich fills unset playlist name, curator and follower fields from Spotify for records with a
// playlist link. Fields already present are never overwritten. Lookups run on a rate-limited pool
// of workers; individual failures are reported in the result.
func Enrich(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	lookup services.PlaylistLookup,
	records []contacts.ContactRecord,
	logger *log.Logger,
	opts EnrichOpts,
) (*EnrichResult, error) {
	if lookup == nil {
		return nil, fmt.Errorf("%w: spotify not initialized", shared.ErrServiceUnavailable)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	result := &EnrichResult{Records: make([]contacts.ContactRecord, len(records))}
	var queue []enrichJob
	for i, r := range records {
		result.Records[i] = r.Clone()
		if r.SpotifyURL == "" || !needsEnrichment(r) {
			continue
		}
		id, err := services.PlaylistIDFromURL(r.SpotifyURL)
		if err != nil {
			continue
		}
		queue = append(queue, enrichJob{index: i, playlistID: id})
	}
	result.Looked = len(queue)
	if len(queue) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan enrichJob)
	type found struct {
		job      enrichJob
		playlist *services.SpotifyPlaylist
		err      error
	}
	out := make(chan found, len(queue))

	var wg sync.WaitGroup
	for range min(opts.NumWorkers, len(queue)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				p, err := lookup.Playlist(ctx, job.playlistID)
				out <- found{job: job, playlist: p, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, job := range queue {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	completed := 0
	for f := range out {
		completed++
		outcome := EnrichOutcome{Index: f.job.index, PlaylistID: f.job.playlistID, Err: f.err}
		if f.err == nil {
			outcome.Updated = applyPlaylist(&result.Records[f.job.index], f.playlist)
		}

		switch {
		case outcome.Err != nil:
			result.Failed++
			if !errors.Is(outcome.Err, shared.ErrPlaylistNotFound) {
				logger.Warn("playlist lookup failed", "id", outcome.PlaylistID, "error", outcome.Err)
			}
		case outcome.Updated:
			result.Updated++
		}
		result.Outcomes = append(result.Outcomes, outcome)
		sendProgress(prog, enrichUpdate(completed, len(queue), outcome))
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("enrichment interrupted: %w", err)
	}
	return result, nil
}

func needsEnrichment(r contacts.ContactRecord) bool {
	return r.PlaylistName == "" || r.Curator == "" || r.Followers == ""
}

// applyPlaylist copies metadata into unset fields of r and reports whether anything changed.
func applyPlaylist(r *contacts.ContactRecord, p *services.SpotifyPlaylist) bool {
	if p == nil {
		return false
	}
	changed := false
	if r.PlaylistName == "" && p.Name != "" {
		r.PlaylistName, changed = p.Name, true
	}
	if r.Curator == "" && p.Owner.DisplayName != "" {
		r.Curator, changed = p.Owner.DisplayName, true
	}
	if r.Followers == "" && p.FollowerCount() > 0 {
		r.Followers, changed = FormatFollowers(p.FollowerCount()), true
	}
	return changed
}
