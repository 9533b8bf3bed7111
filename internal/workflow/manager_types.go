package workflow

import (
	"context"
	"log/slog"
	"time"
)

type laneKind string

const (
	laneIngest  laneKind = "ingest"
	lanePublish laneKind = "publish"
)

// passFunc runs one pass and reports whether it found work.
type passFunc func(ctx context.Context, passID string) (bool, error)

type laneState struct {
	kind     laneKind
	pass     passFunc
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger
}

// PassInfo describes the most recent pass of a lane.
type PassInfo struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Worked     bool
	Err        string
}
