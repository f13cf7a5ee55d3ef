package passwordless

import (
	"context"
	"sync"
)

// Credentials is the persisted session artifact triple. All three fields
// must be present together or the record is treated as absent.
type Credentials struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
	Token      string `json:"token"`
}

// Complete reports whether every artifact is present.
func (c *Credentials) Complete() bool {
	return c != nil && c.IdentityID != "" && c.Email != "" && c.Token != ""
}

// Partial reports whether some but not all artifacts are present. A
// partial record is inconsistent and must be cleared rather than trusted.
func (c *Credentials) Partial() bool {
	if c == nil {
		return false
	}
	if c.Complete() {
		return false
	}
	return c.IdentityID != "" || c.Email != "" || c.Token != ""
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

// MemoryCredentialStore keeps credentials in process memory. Useful for
// tests and hosts without durable local storage.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

// NewMemoryCredentialStore returns an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Load(ctx context.Context) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil {
		return nil, nil
	}

	if !s.creds.Complete() {
		// inconsistent record, fail closed
		s.creds = nil
		return nil, nil
	}

	creds := *s.creds
	return &creds, nil
}

func (s *MemoryCredentialStore) Save(ctx context.Context, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creds == nil {
		s.creds = nil
		return nil
	}

	c := *creds
	s.creds = &c
	return nil
}

func (s *MemoryCredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = nil
	return nil
}
