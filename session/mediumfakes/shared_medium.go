package mediumfakes

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/session"
)

// SharedStorage simulates one storage area shared by several processes. Each
// simulated process takes a Handle; a save through one handle is delivered to
// the watchers of every other handle, the way the browser delivers storage
// events only to tabs that did not make the mutation.
type SharedStorage struct {
	mu      sync.Mutex
	payload []byte
	handles []*SharedHandle
}

func NewSharedStorage() *SharedStorage {
	return &SharedStorage{}
}

// Handle creates the view of one simulated process onto the shared storage.
func (s *SharedStorage) Handle() *SharedHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &SharedHandle{storage: s}
	s.handles = append(s.handles, h)
	return h
}

func (s *SharedStorage) set(origin *SharedHandle, payload []byte) {
	s.mu.Lock()
	s.payload = payload
	targets := make([]*SharedHandle, 0, len(s.handles))
	for _, h := range s.handles {
		if h != origin {
			targets = append(targets, h)
		}
	}
	s.mu.Unlock()

	for _, h := range targets {
		h.notify(payload)
	}
}

var (
	_ session.Medium  = (*SharedHandle)(nil)
	_ session.Watcher = (*SharedHandle)(nil)
)

// SharedHandle is one simulated process's Medium over a SharedStorage.
type SharedHandle struct {
	storage  *SharedStorage
	mu       sync.Mutex
	watchers []func([]byte)
}

func (h *SharedHandle) Load() ([]byte, error) {
	h.storage.mu.Lock()
	defer h.storage.mu.Unlock()
	if h.storage.payload == nil {
		return nil, nil
	}
	return append([]byte(nil), h.storage.payload...), nil
}

func (h *SharedHandle) Save(payload []byte) error {
	h.storage.set(h, append([]byte(nil), payload...))
	return nil
}

func (h *SharedHandle) Clear() error {
	h.storage.set(h, nil)
	return nil
}

func (h *SharedHandle) Watch(onChange func(payload []byte)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchers = append(h.watchers, onChange)
	return func() {}, nil
}

func (h *SharedHandle) notify(payload []byte) {
	h.mu.Lock()
	watchers := append([]func([]byte){}, h.watchers...)
	h.mu.Unlock()
	for _, fn := range watchers {
		fn(payload)
	}
}
