// Gmail API implementation of [Mailer] and [MailboxReader]
//
// REST reference: https://developers.google.com/gmail/api/reference/rest
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/pitch/internal/shared"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	gmailBaseURL   = "https://gmail.googleapis.com/gmail/v1/users/me"

	defaultGmailRedirect = "http://localhost:3000/callback"
)

// GmailScopes are requested together so one token serves drafts, sending and bounce checks.
var GmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// GoogleClientSecrets is a client secrets file as downloaded from the Google Cloud console.
type GoogleClientSecrets struct {
	Installed *googleClient `json:"installed"`
	Web       *googleClient `json:"web"`
}

type googleClient struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// GmailProfile is the authenticated mailbox.
type GmailProfile struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int    `json:"messagesTotal"`
	ThreadsTotal  int    `json:"threadsTotal"`
}

type gmailError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type gmailRawMessage struct {
	ID       string `json:"id,omitempty"`
	ThreadID string `json:"threadId,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

type gmailDraft struct {
	ID      string          `json:"id,omitempty"`
	Message gmailRawMessage `json:"message"`
}

type gmailMessageList struct {
	Messages      []MessageRef `json:"messages"`
	NextPageToken string       `json:"nextPageToken"`
}

// GmailService talks to the Gmail REST API with an OAuth2 installed-app token.
type GmailService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
	tokenFile  string

	onTokenRefresh func(*oauth2.Token)
}

// LoadClientSecrets reads a Google client secrets file.
func LoadClientSecrets(path string) (*googleClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrFileNotFound, path)
		}
		return nil, err
	}

	var secrets GoogleClientSecrets
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}

	client := secrets.Installed
	if client == nil {
		client = secrets.Web
	}
	if client == nil || client.ClientID == "" {
		return nil, fmt.Errorf("%w: no installed or web client in %s", shared.ErrInvalidCredentials, path)
	}
	return client, nil
}

// NewGmailService builds a client from configuration. Explicit client ID and secret win over the
// credentials file.
func NewGmailService(cfg shared.GmailConfig) (*GmailService, error) {
	clientID, clientSecret, redirect := cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI
	authURL, tokenURL := googleAuthURL, googleTokenURL

	if clientID == "" || clientSecret == "" {
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("%w: gmail client_id/client_secret or credentials_file", shared.ErrMissingCredentials)
		}
		client, err := LoadClientSecrets(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		clientID, clientSecret = client.ClientID, client.ClientSecret
		if client.AuthURI != "" {
			authURL = client.AuthURI
		}
		if client.TokenURI != "" {
			tokenURL = client.TokenURI
		}
		if redirect == "" && len(client.RedirectURIs) > 0 && strings.HasPrefix(client.RedirectURIs[0], "http") {
			redirect = client.RedirectURIs[0]
		}
	}
	if redirect == "" {
		redirect = defaultGmailRedirect
	}

	return &GmailService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirect,
			Scopes:       GmailScopes,
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		},
		baseURL:   gmailBaseURL,
		tokenFile: cfg.TokenFile,
	}, nil
}

func (g *GmailService) Name() string { return "Gmail" }

// AuthURL returns the consent URL. Offline access with forced consent so a refresh token is issued.
func (g *GmailService) AuthURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// RedirectURL is the callback the consent screen returns to.
func (g *GmailService) RedirectURL() string {
	return g.config.RedirectURL
}

// Exchange trades an authorization code for a token, persists it and activates it.
func (g *GmailService) Exchange(ctx context.Context, code string) error {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if g.tokenFile != "" {
		if err := SaveToken(g.tokenFile, token); err != nil {
			return err
		}
	}
	g.SetToken(ctx, token)
	return nil
}

// Authenticate activates the cached token file.
func (g *GmailService) Authenticate(ctx context.Context) error {
	if g.tokenFile == "" {
		return fmt.Errorf("%w: no token file configured", shared.ErrNotAuthenticated)
	}
	token, err := LoadToken(g.tokenFile)
	if err != nil {
		if errors.Is(err, shared.ErrFileNotFound) {
			return fmt.Errorf("%w: run `pitch gmail auth` first", shared.ErrNotAuthenticated)
		}
		return err
	}
	if !token.Valid() && token.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}
	g.SetToken(ctx, token)
	return nil
}

// SetToken activates token. Refreshed tokens are written back to the token file.
func (g *GmailService) SetToken(ctx context.Context, token *oauth2.Token) {
	g.token = token
	source := &refreshableTokenSource{
		source:   g.config.TokenSource(ctx, token),
		last:     token,
		callback: g.tokenRefreshed,
	}
	g.httpClient = oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source))
}

// SetTokenRefreshCallback registers fn to run whenever the token is refreshed.
func (g *GmailService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	g.onTokenRefresh = fn
}

func (g *GmailService) tokenRefreshed(token *oauth2.Token) {
	g.token = token
	if g.tokenFile != "" {
		_ = SaveToken(g.tokenFile, token)
	}
	if g.onTokenRefresh != nil {
		g.onTokenRefresh(token)
	}
}

// Token returns the active token, nil before authentication.
func (g *GmailService) Token() *oauth2.Token {
	return g.token
}

// refreshableTokenSource reports each new token to callback.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	last     *oauth2.Token
	callback func(*oauth2.Token)
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := s.last == nil || s.last.AccessToken != token.AccessToken
	s.last = token
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}

// LoadToken reads a token saved by [SaveToken].
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrFileNotFound, path)
		}
		return nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: token file %s: %v", shared.ErrInvalidCredentials, path, err)
	}
	return &token, nil
}

// SaveToken writes token as JSON readable only by the owner.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := shared.MarshalJSON(token, true)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// doRequest performs an authenticated JSON request against the Gmail API.
func (g *GmailService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if g.httpClient == nil {
		return shared.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, retrieveErr)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gmailStatusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func gmailStatusError(resp *http.Response) error {
	var apiErr gmailError
	msg := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrMessageNotFound, msg)
	default:
		return fmt.Errorf("%w: gmail status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

// Profile returns the authenticated mailbox address.
func (g *GmailService) Profile(ctx context.Context) (*GmailProfile, error) {
	var profile GmailProfile
	if err := g.doRequest(ctx, http.MethodGet, "/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateDraft implements [Mailer].
func (g *GmailService) CreateDraft(ctx context.Context, e Email) (string, error) {
	raw, err := ComposeMIME(e)
	if err != nil {
		return "", err
	}

	req := gmailDraft{Message: gmailRawMessage{Raw: base64.URLEncoding.EncodeToString(raw)}}
	var draft gmailDraft
	if err := g.doRequest(ctx, http.MethodPost, "/drafts", req, &draft); err != nil {
		return "", err
	}
	return draft.ID, nil
}

// Send implements [Mailer].
func (g *GmailService) Send(ctx context.Context, e Email) (string, error) {
	raw, err := ComposeMIME(e)
	if err != nil {
		return "", err
	}

	req := gmailRawMessage{Raw: base64.URLEncoding.EncodeToString(raw)}
	var sent gmailRawMessage
	if err := g.doRequest(ctx, http.MethodPost, "/messages/send", req, &sent); err != nil {
		return "", err
	}
	return sent.ID, nil
}

// ListMessages implements [MailboxReader], following page tokens until max refs are collected.
func (g *GmailService) ListMessages(ctx context.Context, query string, max int) ([]MessageRef, error) {
	if max <= 0 {
		max = 500
	}

	var refs []MessageRef
	pageToken := ""
	for len(refs) < max {
		params := url.Values{}
		params.Set("q", query)
		params.Set("maxResults", strconv.Itoa(min(max-len(refs), 500)))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page gmailMessageList
		if err := g.doRequest(ctx, http.MethodGet, "/messages?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		refs = append(refs, page.Messages...)

		if page.NextPageToken == "" || len(page.Messages) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	if len(refs) > max {
		refs = refs[:max]
	}
	return refs, nil
}

// GetMessage implements [MailboxReader].
func (g *GmailService) GetMessage(ctx context.Context, id string) (*RawMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: message id", shared.ErrMissingArgument)
	}

	var msg gmailRawMessage
	endpoint := "/messages/" + url.PathEscape(id) + "?format=raw"
	if err := g.doRequest(ctx, http.MethodGet, endpoint, nil, &msg); err != nil {
		return nil, err
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(msg.Raw, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}
	return &RawMessage{ID: msg.ID, ThreadID: msg.ThreadID, Snippet: msg.Snippet, Raw: raw}, nil
}
