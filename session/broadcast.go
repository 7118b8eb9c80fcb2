package session

import "sync"

// Broadcaster fans session changes out to in-process subscribers. The store
// publishes its own writes on it, and foreign mutations observed through a
// watching medium are republished on the same channel, so subscribers never
// special-case where a change came from.
//
// Delivery is synchronous and in publish order per publisher. Subscribers
// across processes may observe the same logical change more than once (their
// own write plus the other process's echo of a racing write); they must treat
// notifications as "the session now has this value", not as deltas.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Session)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(Session))}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Broadcaster) Subscribe(fn func(Session)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the session value to every subscriber.
func (b *Broadcaster) Publish(sess Session) {
	b.mu.Lock()
	listeners := make([]func(Session), 0, len(b.subs))
	for _, fn := range b.subs {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}
