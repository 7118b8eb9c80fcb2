package mediumfakes

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-client/session"
)

var (
	_ session.Medium  = (*FakeMedium)(nil)
	_ session.Watcher = (*FakeMedium)(nil)
)

// FakeMedium is an in-memory session.Medium with failure injection and a
// manual cross-process trigger, for tests that exercise degraded storage and
// foreign-mutation handling without a real filesystem.
type FakeMedium struct {
	mu        sync.Mutex
	payload   []byte
	FailLoads bool
	FailSaves bool
	watchers  []func([]byte)
}

func NewFakeMedium() *FakeMedium {
	return &FakeMedium{}
}

func (m *FakeMedium) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLoads {
		return nil, errors.New("medium unavailable")
	}
	if m.payload == nil {
		return nil, nil
	}
	return append([]byte(nil), m.payload...), nil
}

func (m *FakeMedium) Save(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return errors.New("medium unavailable")
	}
	m.payload = append([]byte(nil), payload...)
	return nil
}

func (m *FakeMedium) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return errors.New("medium unavailable")
	}
	m.payload = nil
	return nil
}

func (m *FakeMedium) Watch(onChange func(payload []byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, onChange)
	return func() {}, nil
}

// SimulateForeignWrite plants a payload as if another process wrote it and
// notifies all watchers synchronously.
func (m *FakeMedium) SimulateForeignWrite(payload []byte) {
	m.mu.Lock()
	m.payload = append([]byte(nil), payload...)
	watchers := append([]func([]byte){}, m.watchers...)
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(append([]byte(nil), payload...))
	}
}
