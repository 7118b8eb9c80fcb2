package session

import "sync"

// MemoryMedium is an in-process Medium. It backs tests and deployments that
// want no persistence at all; sessions die with the process.
type MemoryMedium struct {
	mu      sync.RWMutex
	payload []byte
}

var _ Medium = (*MemoryMedium)(nil)

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{}
}

func (m *MemoryMedium) Load() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.payload == nil {
		return nil, nil
	}
	cp := make([]byte, len(m.payload))
	copy(cp, m.payload)
	return cp, nil
}

func (m *MemoryMedium) Save(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryMedium) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
	return nil
}
