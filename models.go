package passwordless

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EmailRouteRule maps a transaction-type code to the recipient addresses
// for one user. The (user_id, transaction_type) pair is unique; the
// repository enforces the invariant before insert.
type EmailRouteRule struct {
	bun.BaseModel   `bun:"table:email_route_rules,alias:err"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID          uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TransactionType string     `bun:"transaction_type,notnull" json:"transaction_type,omitempty"`
	Recipients      []string   `bun:"recipients" json:"recipients,omitempty"`
	Active          bool       `bun:"active" json:"active"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// CredentialRecord is one persisted session artifact in the Bun-backed
// credential store.
type CredentialRecord struct {
	bun.BaseModel `bun:"table:credentials,alias:cred"`
	Key           string     `bun:"key,pk" json:"key"`
	Value         string     `bun:"value,notnull" json:"value"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
