// Package preflight provides readiness checks for the filesystem paths and
// remote endpoints that ddexer depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll on start and logs any failure before the
//     workflow lanes begin polling and publishing.
//   - The CLI "ddexer status" command uses the individual check functions
//     (CheckDirectoryAccess, CheckEndpoint, CheckBucket) to display health.
//
// Sources only get the checks their configuration enables: a source without
// a bucket is never listed, and one without a local_dir is not stat'ed.
package preflight
