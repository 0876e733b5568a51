// Package repositories implements SQLite persistence for the client's local state.
//
// Key Implementations:
//   - [SessionRepository] : signed-in accounts and their OAuth tokens; the most recently updated row is the active account
//   - [AttemptRepository] : upload history, one row per workflow attempt
//
// Both implement [models.Repository]. Sequence numbers come from per-table counters maintained by [NextSequence].
// Pre-signed upload URLs are never persisted.
package repositories
