package session

// Medium is the storage backend boundary. Implementations persist one opaque
// payload per user: the serialized session. Load returns (nil, nil) when
// nothing is stored; that is the logged-out state, not an error.
type Medium interface {
	Load() ([]byte, error)
	Save(payload []byte) error
	Clear() error
}

// Watcher is the optional capability of a Medium that can observe mutations
// made by other processes. The onChange callback receives the new payload
// (nil when the slot was cleared). Self-originated writes are not reported.
type Watcher interface {
	Watch(onChange func(payload []byte)) (stop func(), err error)
}
