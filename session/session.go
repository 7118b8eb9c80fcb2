// Package session owns the client-side auth session: the credential pair and
// the cached user snapshot, their persistence across processes, and the
// change-notification fan-out that keeps every process of the same user in
// agreement about the current session.
package session

import (
	"bytes"
	"encoding/json"
)

// CredentialPair is the access/refresh token pair. The two tokens are always
// written and read together; a pair with either side missing is invalid and
// is treated as "no session".
type CredentialPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether both halves of the pair are present.
func (c CredentialPair) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// UserSnapshot is the backend-defined user record cached alongside the
// credentials for synchronous access. It is opaque to this package: the
// backend owns its shape, and the snapshot is not authoritative (it may be
// refreshed from the current-user endpoint at any time).
type UserSnapshot []byte

// MarshalJSON writes the snapshot through unmodified.
func (u UserSnapshot) MarshalJSON() ([]byte, error) {
	if len(u) == 0 {
		return []byte("null"), nil
	}
	return u, nil
}

// UnmarshalJSON stores the raw bytes unmodified. A JSON null clears the
// snapshot.
func (u *UserSnapshot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = nil
		return nil
	}
	*u = append((*u)[:0], data...)
	return nil
}

// Decode unmarshals the snapshot into a caller-owned type.
func (u UserSnapshot) Decode(into any) error {
	if len(u) == 0 {
		return nil
	}
	return json.Unmarshal(u, into)
}

// Equal reports byte equality of two snapshots.
func (u UserSnapshot) Equal(other UserSnapshot) bool {
	return bytes.Equal(u, other)
}

// Session is the unit the store reads and writes. Credentials and User are
// updated together; no component mutates one without the other going through
// the same write.
type Session struct {
	Credentials *CredentialPair `json:"credentials,omitempty"`
	User        UserSnapshot    `json:"user,omitempty"`
}

// Active reports whether the session carries a complete credential pair.
func (s Session) Active() bool {
	return s.Credentials != nil && s.Credentials.Valid()
}
