// Package server provides HTTP routing, middleware, and the OAuth callback used by `pitch gmail auth`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /callback") internally.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), hands the authorization code to an [Exchanger],
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Callback Server
//
// [WaitForCallback] serves a router on a listener until the handler reports a result, the timeout passes, or the
// context is cancelled, then shuts the server down.
package server
