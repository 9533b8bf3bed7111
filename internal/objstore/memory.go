package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ddexer/internal/config"
)

// MemoryBucket is an in-process Bucket for tests and dry runs.
type MemoryBucket struct {
	name string

	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
	failing map[string]error
}

// NewMemoryBucket returns an empty bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:    name,
		objects: make(map[string][]byte),
		gets:    make(map[string]int),
		failing: make(map[string]error),
	}
}

// Name returns the bucket name.
func (m *MemoryBucket) Name() string { return m.name }

// Put stores data under key.
func (m *MemoryBucket) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// FailGet makes Get return err for key. A nil err clears the failure.
func (m *MemoryBucket) FailGet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, key)
		return
	}
	m.failing[key] = err
}

// Gets reports how often key was fetched.
func (m *MemoryBucket) Gets(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets[key]
}

func (m *MemoryBucket) sortedKeys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ListPrefixes mirrors a delimiter listing at the bucket root.
func (m *MemoryBucket) ListPrefixes(_ context.Context, after string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	seen := make(map[string]bool)
	for _, key := range m.sortedKeys() {
		dir, _, nested := strings.Cut(key, "/")
		if !nested {
			continue
		}
		prefix := dir + "/"
		if prefix > after && !seen[prefix] {
			seen[prefix] = true
			out = append(out, prefix)
		}
	}
	return out, nil
}

// ListObjects returns keys under prefix.
func (m *MemoryBucket) ListObjects(_ context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for _, key := range m.sortedKeys() {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: int64(len(m.objects[key]))})
		}
	}
	return out, nil
}

// Get returns a copy of the stored bytes.
func (m *MemoryBucket) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[key]; err != nil {
		return nil, err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, URL(m.name, key))
	}
	m.gets[key]++
	return append([]byte(nil), data...), nil
}

// MemoryProvider serves MemoryBuckets by name.
type MemoryProvider map[string]*MemoryBucket

// Bucket returns the named bucket.
func (p MemoryProvider) Bucket(_ context.Context, cfg config.S3) (Bucket, error) {
	b, ok := p[cfg.Bucket]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %s", ErrNotFound, cfg.Bucket)
	}
	return b, nil
}
