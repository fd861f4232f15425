package monnify

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

// WebhookEvent is the transaction notification Monnify posts to us.
type WebhookEvent struct {
	EventType string    `json:"eventType"`
	EventData EventData `json:"eventData"`
}

type EventData struct {
	TransactionReference string   `json:"transactionReference"`
	PaymentReference     string   `json:"paymentReference"`
	AmountPaid           Amount   `json:"amountPaid"`
	PaymentStatus        string   `json:"paymentStatus"`
	PaymentDescription   string   `json:"paymentDescription"`
	Customer             Customer `json:"customer"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Amount accepts both numeric and quoted amounts.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *WebhookEvent) Confirmation() model.PaymentConfirmation {
	return model.PaymentConfirmation{
		EventType:        e.EventType,
		PaymentReference: e.EventData.PaymentReference,
		AmountPaid:       float64(e.EventData.AmountPaid),
		PayerEmail:       strings.TrimSpace(e.EventData.Customer.Email),
		Description:      e.EventData.PaymentDescription,
	}
}
