package redis

import (
	"context"
	"sync"
	"time"

	"github.com/dropsight/catmig"
)

type mockEntry struct {
	value    string
	deadline time.Time // zero means no TTL
}

// MockClient is an in-memory Coordinator for tests. TTLs are tracked but only
// observed lazily on access; ExpireNow force-expires a key to simulate a
// crashed lease holder.
type MockClient struct {
	mu     sync.Mutex
	lookup map[string]mockEntry
	hashes map[string]map[string]string
}

// NewMockClient returns a new in-memory Coordinator mock.
func NewMockClient() *MockClient {
	return &MockClient{
		lookup: make(map[string]mockEntry),
		hashes: make(map[string]map[string]string),
	}
}

var _ catmig.Coordinator = (*MockClient)(nil)

// ExpireNow deletes key as if its TTL had elapsed.
func (m *MockClient) ExpireNow(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lookup, key)
}

func (m *MockClient) get(key string) (mockEntry, bool) {
	e, ok := m.lookup[key]
	if !ok {
		return mockEntry{}, false
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		delete(m.lookup, key)
		return mockEntry{}, false
	}
	return e, true
}

func (m *MockClient) Ping(ctx context.Context) error {
	return nil
}

func (m *MockClient) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(key); ok {
		return false, nil
	}
	e := mockEntry{value: value}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	}
	m.lookup[key] = e
	return true, nil
}

func (m *MockClient) Get(ctx context.Context, key string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	return ok, e.value, nil
}

func (m *MockClient) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok {
		return false, nil
	}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	} else {
		e.deadline = time.Time{}
	}
	m.lookup[key] = e
	return true, nil
}

func (m *MockClient) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(key)
	return ok, nil
}

func (m *MockClient) Delete(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.lookup, k)
		delete(m.hashes, k)
	}
	return nil
}

func (m *MockClient) HSet(ctx context.Context, key string, field string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *MockClient) HGet(ctx context.Context, key string, field string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return false, "", nil
	}
	v, ok := h[field]
	return ok, v, nil
}

func (m *MockClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *MockClient) HLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.hashes[key])), nil
}
