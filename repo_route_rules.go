package passwordless

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RouteRules manages the per-user email routing rules of the account
// model.
type RouteRules interface {
	repository.Repository[*EmailRouteRule]

	// CreateUnique inserts a rule after checking the
	// (user_id, transaction_type) uniqueness invariant.
	CreateUnique(ctx context.Context, rule *EmailRouteRule) (*EmailRouteRule, error)
	CreateUniqueTx(ctx context.Context, tx bun.IDB, rule *EmailRouteRule) (*EmailRouteRule, error)

	GetByUserAndType(ctx context.Context, userID uuid.UUID, transactionType string) (*EmailRouteRule, error)
	GetByUserAndTypeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, transactionType string) (*EmailRouteRule, error)
}

type routeRules struct {
	repository.Repository[*EmailRouteRule]
	db *bun.DB
}

var (
	_ RouteRules                             = (*routeRules)(nil)
	_ repository.Repository[*EmailRouteRule] = (*routeRules)(nil)
)

// NewRouteRulesRepository returns the default RouteRules implementation.
func NewRouteRulesRepository(db *bun.DB) RouteRules {
	repo := repository.NewRepository[*EmailRouteRule](db, repository.ModelHandlers[*EmailRouteRule]{
		NewRecord: func() *EmailRouteRule { return &EmailRouteRule{} },
		GetID: func(r *EmailRouteRule) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *EmailRouteRule, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "transaction_type"
		},
	})

	return &routeRules{
		Repository: repo,
		db:         db,
	}
}

func (r *routeRules) CreateUnique(ctx context.Context, rule *EmailRouteRule) (*EmailRouteRule, error) {
	return r.CreateUniqueTx(ctx, r.db, rule)
}

func (r *routeRules) CreateUniqueTx(ctx context.Context, tx bun.IDB, rule *EmailRouteRule) (*EmailRouteRule, error) {
	existing, err := r.GetByUserAndTypeTx(ctx, tx, rule.UserID, rule.TransactionType)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if existing != nil {
		return nil, ErrRouteRuleExists.WithMetadata(map[string]any{
			"user_id":          rule.UserID.String(),
			"transaction_type": rule.TransactionType,
		})
	}

	return r.Repository.CreateTx(ctx, tx, rule)
}

func (r *routeRules) GetByUserAndType(ctx context.Context, userID uuid.UUID, transactionType string) (*EmailRouteRule, error) {
	return r.GetByUserAndTypeTx(ctx, r.db, userID, transactionType)
}

func (r *routeRules) GetByUserAndTypeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, transactionType string) (*EmailRouteRule, error) {
	record := &EmailRouteRule{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.transaction_type = ?", transactionType).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id":          userID.String(),
					"transaction_type": transactionType,
				})
		}
		return nil, err
	}

	return record, nil
}
