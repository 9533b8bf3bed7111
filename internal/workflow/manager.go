package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ddexer/internal/config"
	"ddexer/internal/logging"
	"ddexer/internal/poller"
	"ddexer/internal/publisher"
	"ddexer/internal/store"
)

// Manager owns the ingest and publish loops.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	poller    *poller.Poller
	publisher *publisher.Publisher
	logger    *slog.Logger

	lanes     map[laneKind]*laneState
	laneOrder []laneKind

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastPass map[laneKind]PassInfo
}

// NewManager constructs a workflow manager. A nil poller disables the
// ingest lane.
func NewManager(cfg *config.Config, st *store.Store, p *poller.Poller, pub *publisher.Publisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		store:     st,
		poller:    p,
		publisher: pub,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		lanes:     make(map[laneKind]*laneState),
		lastPass:  make(map[laneKind]PassInfo),
	}
	if p != nil {
		m.addLane(&laneState{
			kind:     laneIngest,
			pass:     m.ingestPass,
			interval: seconds(cfg.Workflow.PollInterval),
			idle:     seconds(cfg.Workflow.PollInterval),
		})
	}
	if pub != nil {
		m.addLane(&laneState{
			kind:     lanePublish,
			pass:     m.publishPass,
			interval: seconds(cfg.Workflow.PublishInterval),
			idle:     seconds(cfg.Workflow.IdleInterval),
		})
	}
	return m
}

func (m *Manager) addLane(lane *laneState) {
	m.lanes[lane.kind] = lane
	m.laneOrder = append(m.laneOrder, lane.kind)
}

func (m *Manager) ingestPass(ctx context.Context, passID string) (bool, error) {
	sum, err := m.poller.Poll(ctx, poller.Options{PassID: passID})
	return sum.Documents+sum.Rejected > 0, err
}

func (m *Manager) publishPass(ctx context.Context, passID string) (bool, error) {
	sum, err := m.publisher.Publish(ctx, passID)
	return sum.Total() > 0, err
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
