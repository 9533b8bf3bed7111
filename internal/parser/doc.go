// Package parser turns DDEX ERN documents into canonical releases.
//
// Parse is pure: it reads only the bytes and user directory it is handed, and
// the same input always yields the same releases. Conditions that keep a
// release from publishing are recorded as problems on the release rather
// than returned as errors. Purge messages yield release identifiers and
// manifest messages yield nothing.
package parser
