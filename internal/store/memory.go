package store

import (
	"context"
	"sync"
)

const watchBuffer = 64

// Memory is a process-local backend shared by any number of handles. Each
// handle stands in for one context (one "tab"): it sees other handles'
// writes on Watch but never its own.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	handles map[*MemoryHandle]struct{}
}

type memoryEntry struct {
	data     []byte
	revision uint64
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		handles: make(map[*MemoryHandle]struct{}),
	}
}

// Open creates a new context over the shared backend.
func (m *Memory) Open() *MemoryHandle {
	h := &MemoryHandle{backend: m, origin: newOrigin()}
	m.mu.Lock()
	m.handles[h] = struct{}{}
	m.mu.Unlock()
	return h
}

type MemoryHandle struct {
	backend *Memory
	origin  string

	mu       sync.Mutex
	watchers []chan Notification
}

var _ Store = (*MemoryHandle)(nil)

func (h *MemoryHandle) Load(_ context.Context, key string) ([]byte, uint64, error) {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	e, ok := h.backend.entries[key]
	if !ok {
		return nil, 0, nil
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return data, e.revision, nil
}

func (h *MemoryHandle) Save(_ context.Context, key string, data []byte, expected uint64) (uint64, error) {
	h.backend.mu.Lock()
	e := h.backend.entries[key]
	if e.revision != expected {
		h.backend.mu.Unlock()
		return 0, ErrRevisionMismatch
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	next := memoryEntry{data: stored, revision: e.revision + 1}
	h.backend.entries[key] = next
	others := make([]*MemoryHandle, 0, len(h.backend.handles))
	for other := range h.backend.handles {
		if other != h {
			others = append(others, other)
		}
	}
	h.backend.mu.Unlock()

	n := Notification{Key: key, NewValue: stored, Revision: next.revision, Origin: h.origin}
	for _, other := range others {
		other.deliver(n)
	}
	return next.revision, nil
}

func (h *MemoryHandle) deliver(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.watchers {
		select {
		case ch <- n:
		default:
			// Slow consumer; it will catch up on the next write.
		}
	}
}

func (h *MemoryHandle) Watch(ctx context.Context) (<-chan Notification, error) {
	ch := make(chan Notification, watchBuffer)
	h.mu.Lock()
	h.watchers = append(h.watchers, ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for i, w := range h.watchers {
			if w == ch {
				h.watchers = append(h.watchers[:i], h.watchers[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (h *MemoryHandle) Close() error {
	h.backend.mu.Lock()
	delete(h.backend.handles, h)
	h.backend.mu.Unlock()
	return nil
}
