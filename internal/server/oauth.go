package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/pitch/internal/shared"
)

// Exchanger trades an authorization code for credentials. [*services.GmailService] satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, code string) error
}

// OAuthResult is the outcome of an authorization flow.
type OAuthResult struct {
	Err error
}

// OAuthHandler handles the OAuth2 authorization code callback.
type OAuthHandler struct {
	exchanger Exchanger
	state     string
	path      string
	results   chan OAuthResult
	once      sync.Once
	mu        sync.Mutex
	hit       bool
}

// NewState returns a random state token for CSRF protection.
func NewState() string {
	return shared.GenerateID()
}

// NewOAuthHandler creates a handler for the callback at redirectURL's path.
func NewOAuthHandler(exchanger Exchanger, state, redirectURL string) *OAuthHandler {
	path := "/callback"
	if u, err := url.Parse(redirectURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		path:      path,
		results:   make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func writePage(w http.ResponseWriter, status int, title, message string) {
	color := "#04B575"
	if status >= http.StatusBadRequest {
		color = "#D93025"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTemplate.Execute(w, map[string]string{"Title": title, "Message": message, "Color": color})
}

// ServeHTTP validates the state, exchanges the code and reports the result. Only the first
// callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(OAuthResult{Err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		writePage(w, http.StatusBadRequest, "Authorization Failed", "The request could not be verified. Run the command again.")
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.Send(OAuthResult{Err: err})
		writePage(w, http.StatusBadRequest, "Authorization Failed", "Access was not granted.")
		return
	}

	if err := h.exchanger.Exchange(r.Context(), code); err != nil {
		h.Send(OAuthResult{Err: fmt.Errorf("token exchange failed: %w", err)})
		writePage(w, http.StatusInternalServerError, "Authorization Failed", "The authorization code could not be exchanged.")
		return
	}

	h.Send(OAuthResult{})
	writePage(w, http.StatusOK, "✓ Authorization Successful", "You can close this window and return to the terminal.")
}

// Send delivers result on the result channel. Only the first call has an effect.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result returns the channel that receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
