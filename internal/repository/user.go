package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create inserts a user, returning the existing row when the phone is taken.
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	return optional(&user, err)
}

func (r *userRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE phone = $1`, phone)
	return optional(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE LOWER(email) = LOWER($1)
	`, email)
	return optional(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	name := params.FullName
	if name == "" {
		name = model.PlaceholderName
	}

	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (phone, full_name)
		VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET updated_at = users.updated_at
		RETURNING *
	`, params.Phone, name)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
