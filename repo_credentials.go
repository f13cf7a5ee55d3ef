package passwordless

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

const (
	credentialKeyIdentityID = "identity_id"
	credentialKeyEmail      = "email"
	credentialKeyToken      = "token"
)

var credentialKeys = []string{
	credentialKeyIdentityID,
	credentialKeyEmail,
	credentialKeyToken,
}

var _ CredentialStore = (*BunCredentialStore)(nil)

// BunCredentialStore persists the credential triple in a key/value table,
// the durable option for hosts with a local database. Only the session
// manager should write through it.
type BunCredentialStore struct {
	db     *bun.DB
	logger Logger
	now    func() time.Time
}

// NewBunCredentialStore returns a store backed by db. The credentials
// table must exist; see CreateCredentialsTable.
func NewBunCredentialStore(db *bun.DB) *BunCredentialStore {
	return &BunCredentialStore{
		db:     db,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger.
func (s *BunCredentialStore) WithLogger(logger Logger) *BunCredentialStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// CreateCredentialsTable creates the backing table if missing. Hosts with
// their own migration tooling can skip it.
func CreateCredentialsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*CredentialRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Load returns the persisted triple, or nil when absent. A partial set of
// keys is inconsistent: it is cleared and reported as absent.
func (s *BunCredentialStore) Load(ctx context.Context) (*Credentials, error) {
	var records []CredentialRecord

	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.key IN (?)", bun.In(credentialKeys)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{}
	for _, record := range records {
		switch record.Key {
		case credentialKeyIdentityID:
			creds.IdentityID = record.Value
		case credentialKeyEmail:
			creds.Email = record.Value
		case credentialKeyToken:
			creds.Token = record.Value
		}
	}

	if creds.Partial() {
		s.logger.Warn("partial credential record found, clearing")
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if !creds.Complete() {
		return nil, nil
	}

	return creds, nil
}

// Save upserts the triple atomically.
func (s *BunCredentialStore) Save(ctx context.Context, creds *Credentials) error {
	if creds == nil {
		return s.Clear(ctx)
	}

	now := s.now()
	records := []CredentialRecord{
		{Key: credentialKeyIdentityID, Value: creds.IdentityID, UpdatedAt: &now},
		{Key: credentialKeyEmail, Value: creds.Email, UpdatedAt: &now},
		{Key: credentialKeyToken, Value: creds.Token, UpdatedAt: &now},
	}

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range records {
			_, err := tx.NewInsert().
				Model(&record).
				On("CONFLICT (key) DO UPDATE").
				Set("value = EXCLUDED.value").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes every persisted artifact.
func (s *BunCredentialStore) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*CredentialRecord)(nil)).
		Where("?TableAlias.key IN (?)", bun.In(credentialKeys)).
		Exec(ctx)
	return err
}
