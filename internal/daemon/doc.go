// Package daemon owns the lifecycle of the long-running ddexer process.
//
// It wires configuration, the release store and the workflow manager into a
// single start/stop lifecycle with flock-based locking so only one daemon
// polls and publishes against a data directory. Individual passes live in
// the poller and publisher packages; the daemon only starts, stops and
// reports on them.
package daemon
