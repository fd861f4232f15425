package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ServiceDetails struct {
	ServiceName string `json:"serviceName"`
	Description string `json:"description"`
}

func (d ServiceDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *ServiceDetails) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported service_details type %T", src)
	}
}

type Transaction struct {
	ID               string            `db:"id" json:"id"`
	UserID           string            `db:"user_id" json:"userId"`
	ProviderID       *string           `db:"provider_id" json:"providerId,omitempty"`
	Amount           float64           `db:"amount" json:"amount"`
	Status           TransactionStatus `db:"status" json:"status"`
	PaymentReference string            `db:"payment_reference" json:"paymentReference"`
	ServiceDetails   ServiceDetails    `db:"service_details" json:"serviceDetails"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updatedAt"`
}

// TransactionSummary is a transaction joined with its provider's name.
type TransactionSummary struct {
	Transaction
	ProviderName *string `db:"provider_name" json:"providerName,omitempty"`
}

type CreateTransactionParams struct {
	UserID           string
	ProviderID       *string
	Amount           float64
	Status           TransactionStatus
	PaymentReference string
	ServiceDetails   ServiceDetails
}
