package session

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// persistedSession is the on-medium layout: three named slots, all absent in
// the logged-out state.
type persistedSession struct {
	AccessToken  string          `json:"accessToken,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// Store is the single source of truth for the current session. All reads and
// writes of credentials go through it; no other component keeps a private
// copy it writes to.
//
// Storage failures never surface to callers: a failed write keeps the session
// in memory for this process and still notifies subscribers, so the process
// stays internally consistent even when persistence is unavailable.
type Store struct {
	medium    Medium
	broadcast *Broadcaster
	log       zerolog.Logger

	mu       sync.Mutex
	mem      Session
	degraded bool // last persistence attempt failed; serve mem until one succeeds
}

type StoreOption func(*Store)

// WithStoreLogger sets the logger used to record storage failures.
func WithStoreLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a session store over the given medium.
func NewStore(medium Medium, options ...StoreOption) *Store {
	s := &Store{
		medium:    medium,
		broadcast: NewBroadcaster(),
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Read returns the current session. It never fails: an unavailable medium or
// a corrupt payload degrades to the last in-memory value (empty if none),
// which reads as logged-out.
func (s *Store) Read() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return cloneSession(s.mem)
	}

	payload, err := s.medium.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("loading session, serving in-memory copy")
		return cloneSession(s.mem)
	}
	sess, err := decodeSession(payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("corrupt session payload, treating as logged out")
		s.mem = Session{}
		return Session{}
	}
	s.mem = sess
	return cloneSession(sess)
}

// Write replaces the session. Credentials and user are committed together; a
// half credential pair is normalized to "no session" before anything is
// stored. Subscribers are notified even when persistence fails.
func (s *Store) Write(sess Session) {
	sess = normalize(sess)

	s.mu.Lock()
	s.mem = cloneSession(sess)
	if err := s.medium.Save(encodeSession(sess)); err != nil {
		s.degraded = true
		s.log.Warn().Err(err).Msg("persisting session failed, keeping in-memory copy")
	} else {
		s.degraded = false
	}
	s.mu.Unlock()

	s.broadcast.Publish(cloneSession(sess))
}

// Clear destroys the session. Like Write, subscribers are notified even when
// the medium fails.
func (s *Store) Clear() {
	s.mu.Lock()
	s.mem = Session{}
	if err := s.medium.Clear(); err != nil {
		s.degraded = true
		s.log.Warn().Err(err).Msg("clearing persisted session failed")
	} else {
		s.degraded = false
	}
	s.mu.Unlock()

	s.broadcast.Publish(Session{})
}

// Subscribe registers a listener for session changes, local or foreign.
func (s *Store) Subscribe(fn func(Session)) func() {
	return s.broadcast.Subscribe(fn)
}

// Watch starts republishing foreign mutations observed by the medium, when
// the medium supports watching. The returned stop function is always safe to
// call.
func (s *Store) Watch() (func(), error) {
	watcher, ok := s.medium.(Watcher)
	if !ok {
		return func() {}, nil
	}
	return watcher.Watch(func(payload []byte) {
		sess, err := decodeSession(payload)
		if err != nil {
			s.log.Warn().Err(err).Msg("corrupt session payload from another process, treating as logged out")
			sess = Session{}
		}
		s.mu.Lock()
		s.mem = cloneSession(sess)
		s.degraded = false
		s.mu.Unlock()

		s.broadcast.Publish(sess)
	})
}

// normalize enforces the pair invariant: a session with an incomplete
// credential pair is no session.
func normalize(sess Session) Session {
	if sess.Credentials != nil && !sess.Credentials.Valid() {
		sess.Credentials = nil
	}
	return sess
}

func encodeSession(sess Session) []byte {
	p := persistedSession{User: json.RawMessage(sess.User)}
	if sess.Credentials != nil {
		p.AccessToken = sess.Credentials.AccessToken
		p.RefreshToken = sess.Credentials.RefreshToken
	}
	b, err := json.Marshal(p)
	if err != nil {
		// persistedSession marshals unconditionally unless the user snapshot
		// bytes are invalid JSON; store nothing rather than a broken payload.
		return []byte("{}")
	}
	return b
}

func decodeSession(payload []byte) (Session, error) {
	if len(payload) == 0 {
		return Session{}, nil
	}
	var p persistedSession
	if err := json.Unmarshal(payload, &p); err != nil {
		return Session{}, err
	}
	sess := Session{User: UserSnapshot(p.User)}
	pair := CredentialPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
	if pair.Valid() {
		sess.Credentials = &pair
	}
	return sess, nil
}

func cloneSession(sess Session) Session {
	out := Session{User: append(UserSnapshot(nil), sess.User...)}
	if len(out.User) == 0 {
		out.User = nil
	}
	if sess.Credentials != nil {
		pair := *sess.Credentials
		out.Credentials = &pair
	}
	return out
}
