package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ddexer/internal/logging"
)

// Start launches one goroutine per lane.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.laneOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow lanes not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		lane.logger = m.logger.With(logging.String("lane", string(kind)))
		lanes = append(lanes, lane)
	}
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	for _, lane := range lanes {
		go m.runLane(runCtx, lane)
	}
	return nil
}

// Stop cancels the lanes and waits for the current passes to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// RunOnce runs one ingest pass followed by one publish pass.
func (m *Manager) RunOnce(ctx context.Context) error {
	var errs []error
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane.logger == nil {
			lane.logger = m.logger.With(logging.String("lane", string(kind)))
		}
		if _, err := m.runPass(ctx, lane); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := m.runPass(ctx, lane)
		wait := lane.idle
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			wait = seconds(m.cfg.Workflow.ErrorRetryInterval)
		case worked:
			wait = lane.interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (m *Manager) runPass(ctx context.Context, lane *laneState) (bool, error) {
	info := PassInfo{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := lane.logger.With(logging.String(logging.FieldPassID, info.ID))
	logger.Debug("pass started")

	worked, err := lane.pass(ctx, info.ID)
	info.FinishedAt = time.Now()
	info.Worked = worked
	if err != nil && !errors.Is(err, context.Canceled) {
		info.Err = err.Error()
		m.setLastError(err)
		logger.Error("pass failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, string(lane.kind)+"_pass_failed"),
			logging.String(logging.FieldErrorHint, "check store and source connectivity"),
		)
	} else {
		logger.Debug("pass finished",
			logging.Bool("worked", worked),
			logging.Duration("elapsed", info.FinishedAt.Sub(info.StartedAt)),
		)
	}

	m.mu.Lock()
	m.lastPass[lane.kind] = info
	m.mu.Unlock()
	m.persistPass(ctx, lane.kind, info)
	return worked, err
}
