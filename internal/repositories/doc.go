// Package repositories implements SQLite persistence for campaigns and the send log.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [CampaignRepository] : one row per campaign run with final counts
//   - [SendLogRepository] : per-address outcomes, used to skip processed addresses and to seed send limits
//
// Timestamps are stored as whole UTC seconds so that range filters compare correctly.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
