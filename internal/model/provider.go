package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

type Provider struct {
	ID                  string         `db:"id" json:"id"`
	BusinessName        string         `db:"business_name" json:"businessName"`
	Price               *string        `db:"price" json:"price,omitempty"`
	Services            pq.StringArray `db:"services" json:"services"`
	State               string         `db:"state" json:"state"`
	Description         string         `db:"description" json:"description"`
	TypicalAvailability string         `db:"typical_availability" json:"typicalAvailability"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
}

// ParsedPrice returns the provider's price as a positive number. Absent or
// unparseable prices report false and must not be charged.
func (p *Provider) ParsedPrice() (float64, bool) {
	if p.Price == nil {
		return 0, false
	}
	cleaned := strings.NewReplacer("₦", "", "NGN", "", ",", "", " ", "").Replace(*p.Price)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// ServiceLabel names the service being bought: the user's own query when
// known, otherwise the provider's first listed service.
func (p *Provider) ServiceLabel(query string) string {
	if query != "" {
		return query
	}
	if len(p.Services) > 0 {
		return p.Services[0]
	}
	return "service"
}

// ServiceOffering is a catalog entry grouped under a category.
type ServiceOffering struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
