package objstore

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ddexer/internal/config"
)

type poolKey struct {
	accessKey string
	secretKey string
	region    string
	endpoint  string
}

// Pool caches one S3 client per credential set. The zero value is ready
// to use.
type Pool struct {
	mu      sync.Mutex
	clients map[poolKey]*s3.Client
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Bucket returns a Bucket for cfg, reusing the client for matching
// credentials.
func (p *Pool) Bucket(ctx context.Context, cfg config.S3) (Bucket, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3 bucket not configured")
	}
	key := poolKey{cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.Endpoint}

	p.mu.Lock()
	defer p.mu.Unlock()
	client, ok := p.clients[key]
	if !ok {
		var err error
		client, err = NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if p.clients == nil {
			p.clients = make(map[poolKey]*s3.Client)
		}
		p.clients[key] = client
	}
	return NewS3Bucket(client, cfg.Bucket), nil
}

// Len reports how many clients are cached.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}
