package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"ddexer/internal/logging"
	"ddexer/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	LastError    string
	Lanes        []string
	LastPasses   map[string]PassInfo
	ReleaseStats map[store.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:    m.running,
		LastPasses: make(map[string]PassInfo, len(m.lastPass)),
	}
	for _, kind := range m.laneOrder {
		summary.Lanes = append(summary.Lanes, string(kind))
	}
	for kind, info := range m.lastPass {
		summary.LastPasses[string(kind)] = info
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read release stats", logging.Error(err))
	}
	summary.ReleaseStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func passKey(kind laneKind) string {
	return "workflow.last_pass." + string(kind)
}

// persistPass records info so other processes can report lane activity.
func (m *Manager) persistPass(ctx context.Context, kind laneKind, info PassInfo) {
	data, err := json.Marshal(info)
	if err == nil {
		err = m.store.KVSet(context.WithoutCancel(ctx), passKey(kind), string(data))
	}
	if err != nil {
		m.logger.Warn("failed to persist pass info",
			logging.String("lane", string(kind)),
			logging.Error(err),
		)
	}
}

// RecordedPasses returns the last pass of each lane as persisted by any
// process sharing st, keyed by lane name.
func RecordedPasses(ctx context.Context, st *store.Store) (map[string]PassInfo, error) {
	out := make(map[string]PassInfo)
	for _, kind := range []laneKind{laneIngest, lanePublish} {
		raw, ok, err := st.KVGet(ctx, passKey(kind))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var info PassInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("decode %s pass: %w", kind, err)
		}
		out[string(kind)] = info
	}
	return out, nil
}
