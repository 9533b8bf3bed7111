// Package store persists ddexer state in SQLite: parsed releases with their
// publishing status, the append-only xml log, per-bucket scan markers, the
// user directory and a small key-value table.
//
// Upsert and MarkForDelete read and write a release inside one transaction
// and delegate the decision to the pure Resolve function, so replays and
// out-of-order deliveries never regress a stored row.
package store
