package main

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/desertthunder/pitch/internal/server"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/urfave/cli/v3"
)

// GmailAuth runs the OAuth2 authorization code flow: it serves the callback locally, opens the
// consent screen and stores the resulting token in credentials.gmail.token_file.
func (r *Runner) GmailAuth(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.gmailService()
	if err != nil {
		return err
	}

	addr := r.config.ServerAddr()
	if u, err := url.Parse(svc.RedirectURL()); err == nil && u.Host != "" {
		addr = u.Host
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for OAuth callback on %s: %w", addr, err)
	}

	state := server.NewState()
	handler := server.NewOAuthHandler(svc, state, svc.RedirectURL())
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	authURL := svc.AuthURL(state)
	r.logger.Info("waiting for OAuth callback", "addr", addr)

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize pitch:\n\n%s\n\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to authorize pitch:\n\n%s\n\n", authURL)
	}

	if err := server.WaitForCallback(ctx, ln, router, handler, cmd.Duration("timeout")); err != nil {
		return err
	}

	r.logger.Info("gmail authorized", "token_file", r.config.Credentials.Gmail.TokenFile)
	r.writePlain("✓ Gmail authorized, token saved to %s\n", r.config.Credentials.Gmail.TokenFile)

	if profile, err := svc.Profile(ctx); err == nil {
		r.writePlain("Signed in as %s\n", profile.EmailAddress)
	}
	return nil
}

// GmailStatus shows which mailbox the cached token belongs to.
func (r *Runner) GmailStatus(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.authenticatedGmail(ctx)
	if err != nil {
		return err
	}

	profile, err := svc.Profile(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}

	token := svc.Token()
	r.writePlainHeader("Gmail")
	r.writePlain("Account:  %s\n", profile.EmailAddress)
	r.writePlain("Messages: %d\n", profile.MessagesTotal)
	r.writePlain("Threads:  %d\n", profile.ThreadsTotal)
	if token != nil && !token.Expiry.IsZero() {
		r.writePlain("Token expires: %s\n", token.Expiry.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
