// Command ddexer ingests DDEX deliveries and publishes them.
//
// `ddexer run` starts the daemon: one lane polls the configured buckets,
// the other publishes pending releases. The remaining commands work
// directly against the release database and are safe to run beside the
// daemon: `poll` and `publish` run a single pass, `releases`, `users`,
// `xml` and `markers` inspect or repair state, and `simulate` injects a
// generated delivery for a registered artist.
package main
