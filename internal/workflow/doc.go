// Package workflow drives the two background loops of the daemon.
//
// The ingest lane polls every source bucket for new deliveries and sleeps
// for the poll interval between passes. The publish lane drains the store's
// pending work, sleeping for the publish interval after a pass that did
// something and for the longer idle interval after an empty one. The lanes
// never share a pass, so a slow upload does not delay discovery. Each pass
// carries a pass id in its log lines.
package workflow
