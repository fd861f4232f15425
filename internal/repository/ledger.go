package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/database"
	"github.com/yourhelpa/helpa-server-go/internal/model"
)

// PaymentLedger commits a settled payment and the session reset that goes
// with it in one database transaction.
type PaymentLedger interface {
	Settle(ctx context.Context, params model.CreateTransactionParams, session *model.Session) (*model.Transaction, bool, error)
}

type paymentLedger struct {
	db           *database.DB
	transactions TransactionRepository
	sessions     SessionRepository
}

func NewPaymentLedger(db *database.DB, transactions TransactionRepository, sessions SessionRepository) PaymentLedger {
	return &paymentLedger{db: db, transactions: transactions, sessions: sessions}
}

// Settle inserts the transaction if its reference is new and saves session
// for params.UserID. The returned bool is false for a replayed reference;
// the session is saved either way.
func (l *paymentLedger) Settle(ctx context.Context, params model.CreateTransactionParams, session *model.Session) (*model.Transaction, bool, error) {
	var (
		txn      *model.Transaction
		inserted bool
	)
	err := l.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		txn, inserted, err = l.transactions.WithTx(tx).CreateIfAbsent(ctx, params)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := l.sessions.WithTx(tx).Save(ctx, params.UserID, session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return txn, inserted, nil
}
