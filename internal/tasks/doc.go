// Package tasks runs the long-lived outreach operations with real-time progress reporting.
//
// # Core Operations
//
//  1. [CampaignEngine.Plan] : choose targets from parsed contacts
//     - Keeps records with an email, one per address
//     - Applies genre include/exclude keywords
//     - Validates addresses (skipping ones a validation CSV already vouches for)
//     - Drops addresses the send log has already processed, then applies the limit
//
//  2. [CampaignEngine.Run] : render and deliver
//     - Drafts, sends, or (dry run) only renders each message
//     - Sends are spaced by the [Pacer]; the daily cap ends the run early
//     - Every outcome is written to the send log
//
//  3. [CheckBounces] : scan the mailbox for delivery failures and extract the failed addresses
//
//  4. [Enrich] : fill missing playlist metadata from Spotify on a rate-limited worker pool
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
