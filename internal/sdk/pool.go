package sdk

import (
	"errors"
	"sync"

	"ddexer/internal/config"
)

// Provider hands out a Platform for a source's credentials.
type Provider interface {
	Platform(cfg config.SDK) (Platform, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(cfg config.SDK) (Platform, error)

// Platform calls f.
func (f ProviderFunc) Platform(cfg config.SDK) (Platform, error) { return f(cfg) }

type poolKey struct {
	endpoint  string
	apiKey    string
	apiSecret string
}

// Pool caches one Client per credential set.
type Pool struct {
	mu      sync.Mutex
	clients map[poolKey]*Client
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[poolKey]*Client)}
}

// Platform returns the Client for cfg.
func (p *Pool) Platform(cfg config.SDK) (Platform, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("sdk credentials not configured")
	}
	key := poolKey{cfg.Endpoint, cfg.APIKey, cfg.APISecret}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	c := NewClient(cfg.Endpoint, cfg.APIKey, cfg.APISecret)
	p.clients[key] = c
	return c, nil
}
