package discovery

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process naming service. Several sessions can share one
// store, standing in for independent processes talking to the same cluster.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*memoryNode
}

type memoryNode struct {
	value []byte
	owner *MemorySession // nil for persistent nodes
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]*memoryNode)}
}

// Session returns a new, unconnected session on the store.
func (s *MemoryStore) Session() *MemorySession {
	return &MemorySession{store: s}
}

// Len returns the number of nodes currently in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// MemorySession implements Client on a MemoryStore.
type MemorySession struct {
	store *MemoryStore

	mu        sync.RWMutex
	connected bool
	closed    bool
}

var _ Client = (*MemorySession)(nil)

func (m *MemorySession) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: session closed", ErrConnect)
	}
	m.connected = true
	return nil
}

func (m *MemorySession) live() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && !m.closed
}

func (m *MemorySession) CreatePath(ctx context.Context, path string, value []byte, ephemeral bool) error {
	if !validPath(path) {
		return fmt.Errorf("%w: invalid path %q", ErrWrite, path)
	}
	if !m.live() {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, ErrNotConnected)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ephemeral {
		if _, ok := s.nodes[path]; !ok {
			s.nodes[path] = &memoryNode{value: append([]byte(nil), value...)}
		}
		return nil
	}
	s.nodes[path] = &memoryNode{value: append([]byte(nil), value...), owner: m}
	return nil
}

func (m *MemorySession) Lookup(ctx context.Context, path string) (string, bool, error) {
	if !m.live() {
		return "", false, fmt.Errorf("%w: %s: %w", ErrLookup, path, ErrNotConnected)
	}
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrLookup, path, err)
	}

	s := m.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[path]
	if !ok || len(n.value) == 0 {
		return "", false, nil
	}
	return string(n.value), true, nil
}

func (m *MemorySession) Delete(ctx context.Context, path string) error {
	if !m.live() {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, ErrNotConnected)
	}
	s := m.store
	s.mu.Lock()
	delete(s.nodes, path)
	s.mu.Unlock()
	return nil
}

// Close drops every ephemeral node this session created.
func (m *MemorySession) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, n := range s.nodes {
		if n.owner == m {
			delete(s.nodes, path)
		}
	}
	return nil
}
