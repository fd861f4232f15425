package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

type CatalogRepository interface {
	ListCategories(ctx context.Context, limit int) ([]string, error)
	ListServicesByCategory(ctx context.Context, category string, limit int) ([]model.ServiceOffering, error)
	FindServiceByID(ctx context.Context, id string) (*model.ServiceOffering, error)
}

type catalogRepo struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) ListCategories(ctx context.Context, limit int) ([]string, error) {
	var categories []string
	err := r.db.SelectContext(ctx, &categories, `
		SELECT DISTINCT category FROM services
		WHERE category <> ''
		ORDER BY category
		LIMIT $1
	`, limit)
	return categories, err
}

func (r *catalogRepo) ListServicesByCategory(ctx context.Context, category string, limit int) ([]model.ServiceOffering, error) {
	var services []model.ServiceOffering
	err := r.db.SelectContext(ctx, &services, `
		SELECT * FROM services
		WHERE LOWER(category) = LOWER($1)
		ORDER BY name
		LIMIT $2
	`, category, limit)
	return services, err
}

func (r *catalogRepo) FindServiceByID(ctx context.Context, id string) (*model.ServiceOffering, error) {
	if !util.IsValidUUID(id) {
		return nil, nil
	}
	var service model.ServiceOffering
	err := r.db.GetContext(ctx, &service, `SELECT * FROM services WHERE id = $1`, id)
	return optional(&service, err)
}
