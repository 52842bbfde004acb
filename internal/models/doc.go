// Package models defines the persisted entities of the outreach send log.
//
//   - [Campaign] : one run of the campaign engine with its mode and tallies
//   - [SendRecord] : the outcome for a single address (sent, drafted, failed, bounced, dry run)
//
// All entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
