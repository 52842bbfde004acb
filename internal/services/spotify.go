// Spotify API implementation of [PlaylistLookup]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/pitch/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistFields = "id,name,description,public,owner(id,display_name),followers(total),external_urls"
)

var (
	playlistPathPattern = regexp.MustCompile(`/playlist/([A-Za-z0-9]+)`)
	playlistURIPattern  = regexp.MustCompile(`^spotify:playlist:([A-Za-z0-9]+)$`)
)

type followers struct {
	Total int `json:"total"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylist represents the playlist fields used to enrich contacts.
type SpotifyPlaylist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Owner        Owner             `json:"owner"`
	Public       bool              `json:"public"`
	Followers    followers         `json:"followers"`
	ExternalURLs map[string]string `json:"external_urls"`
}

// FollowerCount returns the follower total.
func (p *SpotifyPlaylist) FollowerCount() int {
	return p.Followers.Total
}

// SpotifyService looks up public playlist metadata with an app-only client credentials token.
type SpotifyService struct {
	config      *clientcredentials.Config
	httpClient  *http.Client
	baseURL     string
	credentials map[string]string
}

// NewSpotifyService creates a new Spotify service with the given app credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	return &SpotifyService{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL:     spotifyBaseURL,
		credentials: credentials,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate prepares a client that fetches and renews app tokens on demand.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if _, err := s.config.Token(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	s.httpClient = s.config.Client(ctx)
	return nil
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	endpoint := fmt.Sprintf("/playlists/%s?fields=%s", url.PathEscape(playlistID), url.QueryEscape(playlistFields))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, endpoint, &playlist); err != nil {
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &playlist, nil
}

// PlaylistIDFromURL extracts the playlist ID from an open.spotify.com link or spotify:playlist URI.
func PlaylistIDFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if m := playlistURIPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}

	u, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Host), "spotify.com") {
		return "", fmt.Errorf("%w: not a spotify link: %q", shared.ErrInvalidInput, raw)
	}
	if m := playlistPathPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: not a playlist link: %q", shared.ErrInvalidInput, raw)
}
