package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// DefaultKey is the namespaced key the snapshot is stored under.
const DefaultKey = "vivahvows_auth"

// Credentials is the access/refresh token pair.
type Credentials struct {
	Access  string
	Refresh string
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.Access != "" && c.Refresh != ""
}

// Empty reports whether both tokens are absent.
func (c Credentials) Empty() bool {
	return c.Access == "" && c.Refresh == ""
}

// Identity is the cached user snapshot returned by the backend's /auth/me/.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Snapshot is everything persisted under the key.
type Snapshot struct {
	Credentials
	User *Identity
}

// Store abstracts persistence for the session snapshot.
//
// Get never fails: IO and decode errors are logged and reported as absent.
type Store interface {
	Get(ctx context.Context) (Snapshot, bool)
	Set(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context) error
	Close() error
}

// Watcher is implemented by stores whose contents can change underneath the
// process (another process logging in or out). The channel receives a value
// after each external change and is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Sealer encrypts the encoded snapshot at rest. *vault.Vault satisfies it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// document is the on-disk/on-wire form of a Snapshot.
type document struct {
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	User    *Identity `json:"user,omitempty"`
}

type codec struct {
	sealer Sealer
}

func (c codec) encode(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(document{Access: s.Access, Refresh: s.Refresh, User: s.User})
	if err != nil {
		return nil, err
	}
	if c.sealer != nil {
		return c.sealer.Seal(b)
	}
	return b, nil
}

func (c codec) decode(b []byte) (Snapshot, error) {
	if c.sealer != nil {
		pt, err := c.sealer.Open(b)
		if err != nil {
			return Snapshot{}, err
		}
		b = pt
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		Credentials: Credentials{
			Access:  strings.TrimSpace(doc.Access),
			Refresh: strings.TrimSpace(doc.Refresh),
		},
		User: doc.User,
	}
	if !s.Valid() {
		return Snapshot{}, errIncomplete
	}
	return s, nil
}

var errIncomplete = errors.New("incomplete credential pair")

func checkPair(s Snapshot) error {
	if !s.Valid() {
		return ErrPartialCredentials
	}
	return nil
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
