package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, id string) (*model.Provider, error)
	// Search matches providers offering service (substring, case-insensitive)
	// in the given state.
	Search(ctx context.Context, service, state string, limit int) ([]model.Provider, error)
}

type providerRepo struct {
	db *sqlx.DB
}

func NewProviderRepository(db *sqlx.DB) ProviderRepository {
	return &providerRepo{db: db}
}

// FindByID treats an id that is not a UUID as not found; reply ids come
// from the user's device.
func (r *providerRepo) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, `SELECT * FROM providers WHERE id = $1`, id)
	return optional(&provider, err)
}

func (r *providerRepo) Search(ctx context.Context, service, state string, limit int) ([]model.Provider, error) {
	var providers []model.Provider
	err := r.db.SelectContext(ctx, &providers, `
		SELECT * FROM providers
		WHERE LOWER(state) = LOWER($2)
		AND EXISTS (
			SELECT 1 FROM unnest(services) AS s
			WHERE strpos(LOWER(s), LOWER($1)) > 0
		)
		ORDER BY business_name
		LIMIT $3
	`, service, state, limit)
	return providers, err
}
