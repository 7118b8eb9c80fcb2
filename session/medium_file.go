package session

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FileMedium persists the session as a JSON file shared by every process of
// the same user — the process analogue of per-origin browser storage. Writes
// go through a temp file and rename so concurrent readers never observe a
// partial payload. It watches the file with fsnotify and reports mutations
// made by other processes, suppressing echoes of its own writes by comparing
// payloads against the last bytes it wrote itself.
type FileMedium struct {
	path string
	log  zerolog.Logger

	mu       sync.Mutex
	lastSeen []byte // last payload this medium wrote or observed
}

var (
	_ Medium  = (*FileMedium)(nil)
	_ Watcher = (*FileMedium)(nil)
)

type FileMediumOption func(*FileMedium)

// WithFileMediumLogger sets the logger used for watch-loop diagnostics.
func WithFileMediumLogger(log zerolog.Logger) FileMediumOption {
	return func(m *FileMedium) {
		m.log = log
	}
}

// NewFileMedium creates a file medium at the given path.
func NewFileMedium(path string, options ...FileMediumOption) *FileMedium {
	m := &FileMedium{path: path, log: zerolog.Nop()}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// DefaultSessionPath returns <user config dir>/<appName>/session.json.
func DefaultSessionPath(appName string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving user config dir")
	}
	return filepath.Join(dir, appName, "session.json"), nil
}

func (m *FileMedium) Load() ([]byte, error) {
	b, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "reading session file %s", m.path)
	}
	return b, nil
}

func (m *FileMedium) Save(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorage, "creating session dir")
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorage, "writing session file")
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorage, "replacing session file")
	}
	m.lastSeen = append([]byte(nil), payload...)
	return nil
}

func (m *FileMedium) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrapf(apperrors.ErrStorage, "removing session file")
	}
	m.lastSeen = nil
	return nil
}

// Watch reports foreign mutations of the session file. The watch is placed on
// the parent directory because the rename-based write cycle replaces the file
// inode on every save.
func (m *FileMedium) Watch(onChange func(payload []byte)) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "creating session dir")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "creating file watcher")
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "watching session dir")
	}

	go m.watchLoop(watcher, onChange)

	return func() {
		if err := watcher.Close(); err != nil {
			m.log.Debug().Err(err).Msg("closing session file watcher")
		}
	}, nil
}

func (m *FileMedium) watchLoop(watcher *fsnotify.Watcher, onChange func(payload []byte)) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) || ev.Op&relevant == 0 {
				continue
			}
			payload, err := m.Load()
			if err != nil {
				m.log.Warn().Err(err).Msg("reading session file after change event")
				continue
			}
			if m.markSeen(payload) {
				onChange(payload)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn().Err(err).Msg("session file watcher error")
		}
	}
}

// markSeen records the payload and reports whether it differs from the last
// payload this medium wrote or observed. Equal payloads are self-write echoes
// or duplicate events and are not re-reported.
func (m *FileMedium) markSeen(payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes.Equal(payload, m.lastSeen) {
		return false
	}
	m.lastSeen = append([]byte(nil), payload...)
	return true
}
