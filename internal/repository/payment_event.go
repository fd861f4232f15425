package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

// PaymentEventRepository keeps an audit trail of verified gateway deliveries.
type PaymentEventRepository interface {
	Record(ctx context.Context, params model.CreatePaymentEventParams) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type paymentEventRepo struct {
	db *sqlx.DB
}

func NewPaymentEventRepository(db *sqlx.DB) PaymentEventRepository {
	return &paymentEventRepo{db: db}
}

func (r *paymentEventRepo) Record(ctx context.Context, params model.CreatePaymentEventParams) error {
	payload := params.Payload
	if len(payload) == 0 || !json.Valid(payload) {
		payload = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_events (event_type, payment_reference, outcome, payload)
		VALUES ($1, $2, $3, $4)
	`, params.EventType, params.PaymentReference, params.Outcome, []byte(payload))
	return err
}

func (r *paymentEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM payment_events WHERE received_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
