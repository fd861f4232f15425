package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/database"
	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
	"github.com/yourhelpa/helpa-server-go/internal/model"
)

type TransactionRepository interface {
	// CreateIfAbsent inserts a transaction keyed by payment reference. It
	// returns (nil, false, nil) when the reference already exists.
	CreateIfAbsent(ctx context.Context, params model.CreateTransactionParams) (*model.Transaction, bool, error)
	FindByReference(ctx context.Context, reference string) (*model.Transaction, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.TransactionSummary, error)
	// UpdateStatus moves a transaction owned by userID from one status to
	// another. It reports false when no row was in the expected state.
	UpdateStatus(ctx context.Context, userID, reference string, from, to model.TransactionStatus) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) TransactionRepository
}

type transactionRepo struct {
	db database.DBTX
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) WithTx(tx *sqlx.Tx) TransactionRepository {
	return &transactionRepo{db: tx}
}

func (r *transactionRepo) CreateIfAbsent(ctx context.Context, params model.CreateTransactionParams) (*model.Transaction, bool, error) {
	var txn model.Transaction
	err := r.db.GetContext(ctx, &txn, `
		INSERT INTO transactions (user_id, provider_id, amount, status, payment_reference, service_details)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_reference) DO NOTHING
		RETURNING *
	`, params.UserID, params.ProviderID, params.Amount, params.Status, params.PaymentReference, params.ServiceDetails)
	created, err := optional(&txn, err)
	if err != nil {
		return nil, false, err
	}
	return created, created != nil, nil
}

func (r *transactionRepo) FindByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.GetContext(ctx, &txn, `
		SELECT * FROM transactions WHERE payment_reference = $1
	`, reference)
	return optional(&txn, err)
}

func (r *transactionRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.TransactionSummary, error) {
	var txns []model.TransactionSummary
	err := r.db.SelectContext(ctx, &txns, `
		SELECT t.*, p.business_name AS provider_name
		FROM transactions t
		LEFT JOIN providers p ON p.id = t.provider_id
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return txns, nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, userID, reference string, from, to model.TransactionStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, apperrors.InvalidTransition(string(from), string(to))
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			status = $4,
			updated_at = $5
		WHERE payment_reference = $1 AND user_id = $2 AND status = $3
	`, reference, userID, from, to, time.Now())
	if err != nil {
		return false, apperrors.Database(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
