// Package storage persists the routine transition audit trail.
//
// Two backends are available: an append-only JSON Lines file and SQLite
// (modernc.org/sqlite, no cgo).
package storage
