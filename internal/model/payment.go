package model

import (
	"encoding/json"
	"time"
)

// EventSuccessfulTransaction is the only gateway event that settles a payment.
const EventSuccessfulTransaction = "SUCCESSFUL_TRANSACTION"

type PaymentLinkRequest struct {
	Amount        float64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Description   string
	Reference     string
}

type PaymentLink struct {
	URL                  string
	Reference            string
	TransactionReference string
}

// PaymentConfirmation is a verified gateway notification reduced to the
// fields reconciliation needs.
type PaymentConfirmation struct {
	EventType        string
	PaymentReference string
	AmountPaid       float64
	PayerEmail       string
	Description      string
}

type PaymentEvent struct {
	ID               string          `db:"id" json:"id"`
	EventType        string          `db:"event_type" json:"eventType"`
	PaymentReference string          `db:"payment_reference" json:"paymentReference"`
	Outcome          PaymentOutcome  `db:"outcome" json:"outcome"`
	Payload          json.RawMessage `db:"payload" json:"payload"`
	ReceivedAt       time.Time       `db:"received_at" json:"receivedAt"`
}

type CreatePaymentEventParams struct {
	EventType        string
	PaymentReference string
	Outcome          PaymentOutcome
	Payload          json.RawMessage
}
