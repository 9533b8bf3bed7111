package store

import "time"

// Action is the outcome of reconciling a delivery with the stored row.
type Action int

const (
	// ActionIgnore leaves the stored row untouched.
	ActionIgnore Action = iota
	// ActionReplace overwrites the stored release content.
	ActionReplace
	// ActionMarkDelete queues the release for takedown.
	ActionMarkDelete
)

func (a Action) String() string {
	switch a {
	case ActionReplace:
		return "replace"
	case ActionMarkDelete:
		return "mark_delete"
	default:
		return "ignore"
	}
}

// Incoming summarizes a delivery for Resolve.
type Incoming struct {
	MessageTimestamp time.Time
	ContentHash      string
	// Purge is set for PurgeReleaseMessage deliveries.
	Purge    bool
	HasDeals bool
}

// Decision is Resolve's verdict and a short reason for logs.
type Decision struct {
	Action Action
	Reason string
}

// Resolve decides how a delivery affects the stored row for its key. It has
// no side effects.
func Resolve(prior *ReleaseRow, in Incoming) Decision {
	if in.Purge {
		switch {
		case prior == nil:
			return Decision{ActionIgnore, "purge for unknown release"}
		case !prior.MessageTimestamp.Before(in.MessageTimestamp):
			return Decision{ActionIgnore, "stale purge"}
		case prior.Status == StatusDeleted:
			return Decision{ActionIgnore, "already deleted"}
		default:
			return Decision{ActionMarkDelete, "purge"}
		}
	}

	if prior == nil {
		return Decision{ActionReplace, "new release"}
	}
	if in.MessageTimestamp.Before(prior.MessageTimestamp) {
		return Decision{ActionIgnore, "stale delivery"}
	}
	if in.MessageTimestamp.Equal(prior.MessageTimestamp) && in.ContentHash == prior.ContentHash {
		return Decision{ActionIgnore, "replayed delivery"}
	}
	if prior.IsPublished() && prior.Status != StatusDeleted && !in.HasDeals {
		return Decision{ActionMarkDelete, "published release lost all deals"}
	}
	return Decision{ActionReplace, "updated delivery"}
}

// statusFor is the status a replaced row takes.
func statusFor(problemCount int) Status {
	if problemCount > 0 {
		return StatusBlocked
	}
	return StatusPublishPending
}
