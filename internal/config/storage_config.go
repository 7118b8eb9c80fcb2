package config

// Storage backend names accepted by AUTH_STORAGE.
const (
	StorageFile    = "file"
	StorageKeyring = "keyring"
	StorageMemory  = "memory"
)

type StorageConfig interface {
	GetStorageBackend() string
	GetSessionFile() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageBackend() string {
	return GetEnv("AUTH_STORAGE", StorageFile)
}

// GetSessionFile returns an explicit session file path, or "" to place the
// file under the user config dir keyed by the app name.
func (Storage) GetSessionFile() string {
	return GetEnv("AUTH_SESSION_FILE", "")
}
