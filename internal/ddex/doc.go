// Package ddex defines the canonical release model produced from DDEX ERN
// deliveries: releases, sound recordings, images, deals and the problems
// that keep a release from being published.
package ddex
