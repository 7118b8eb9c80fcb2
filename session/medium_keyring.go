package session

import (
	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// KeyringMedium persists the session in the OS keychain under a single
// service/user slot. The keychain exposes no change notifications, so this
// medium has no Watch capability: cross-process updates are only observed on
// the next Load.
type KeyringMedium struct {
	service string
	user    string
}

var _ Medium = (*KeyringMedium)(nil)

func NewKeyringMedium(service, user string) *KeyringMedium {
	return &KeyringMedium{service: service, user: user}
}

func (m *KeyringMedium) Load() ([]byte, error) {
	secret, err := keyring.Get(m.service, m.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "reading keyring slot %s/%s", m.service, m.user)
	}
	return []byte(secret), nil
}

func (m *KeyringMedium) Save(payload []byte) error {
	if err := keyring.Set(m.service, m.user, string(payload)); err != nil {
		return apperrors.Wrapf(apperrors.ErrStorage, "writing keyring slot %s/%s", m.service, m.user)
	}
	return nil
}

func (m *KeyringMedium) Clear() error {
	err := keyring.Delete(m.service, m.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return apperrors.Wrapf(apperrors.ErrStorage, "clearing keyring slot %s/%s", m.service, m.user)
	}
	return nil
}
