// Package services implements the HTTP API clients behind campaigns.
//
// # Gmail
//
// [GmailService] authenticates as an OAuth2 installed app. The token is cached on disk and written
// back whenever the [oauth2] client refreshes it. It implements [Mailer] (drafts and sending) and
// [MailboxReader] (search and raw fetch for bounce checks).
//
// Messages are composed and parsed with go-message: [ComposeMIME] builds multipart/alternative
// bodies and [ParseMessage] extracts readable text, including delivery-status reports.
//
// # Spotify
//
// [SpotifyService] uses the client credentials grant, which is enough to read public playlist
// metadata. [PlaylistIDFromURL] pulls the ID from a playlist link.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrRefreshFailed] : refresh token exchange failed
//   - [shared.ErrAPIRequest] : non-2xx response
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrMessageNotFound] : message ID not found
package services
