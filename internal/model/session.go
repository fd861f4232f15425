package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryLimit caps stored turns (three exchanges).
const HistoryLimit = 6

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SearchFlow is owned by awaiting_category and awaiting_service.
type SearchFlow struct {
	Category     string `json:"category,omitempty"`
	ServiceQuery string `json:"serviceQuery,omitempty"`
	Location     string `json:"location,omitempty"`
}

// PaymentFlow is owned by awaiting_payment.
type PaymentFlow struct {
	ProviderID       string  `json:"providerId"`
	ProviderName     string  `json:"providerName"`
	ServiceName      string  `json:"serviceName"`
	Price            float64 `json:"price"`
	PaymentReference string  `json:"paymentReference"`
	PaymentURL       string  `json:"paymentUrl,omitempty"`
}

// ConfirmationFlow is owned by awaiting_confirmation_code.
type ConfirmationFlow struct {
	Code           string           `json:"confirmationCode"`
	Type           ConfirmationType `json:"confirmationType"`
	TransactionRef string           `json:"transactionRef"`
}

// Session is the per-user conversation record, stored as JSONB.
// At most one of Search, Payment and Confirmation is set, matching Stage.
type Session struct {
	Stage             Stage             `json:"stage"`
	History           []Turn            `json:"history,omitempty"`
	Search            *SearchFlow       `json:"search,omitempty"`
	Payment           *PaymentFlow      `json:"payment,omitempty"`
	Confirmation      *ConfirmationFlow `json:"confirmation,omitempty"`
	LastInteractionAt *time.Time        `json:"lastInteractionAt,omitempty"`
}

func NewSession() *Session {
	return &Session{Stage: StageStart}
}

// Normalize coerces an unknown stage to start and drops flow fields the
// current stage does not own.
func (s *Session) Normalize() {
	if !s.Stage.Valid() {
		s.Stage = StageStart
	}
	if s.Stage != StageAwaitingCategory && s.Stage != StageAwaitingService {
		s.Search = nil
	}
	if s.Stage != StageAwaitingPayment {
		s.Payment = nil
	}
	if s.Stage != StageAwaitingConfirmationCode {
		s.Confirmation = nil
	}
	if len(s.History) > HistoryLimit {
		s.History = append([]Turn(nil), s.History[len(s.History)-HistoryLimit:]...)
	}
}

// ResetTo moves to a neutral stage and clears every flow field.
func (s *Session) ResetTo(stage Stage) {
	s.Stage = stage
	s.Search = nil
	s.Payment = nil
	s.Confirmation = nil
}

func (s *Session) AwaitCategory() {
	s.ResetTo(StageAwaitingCategory)
	s.Search = &SearchFlow{}
}

func (s *Session) AwaitService(flow SearchFlow) {
	s.ResetTo(StageAwaitingService)
	s.Search = &flow
}

func (s *Session) AwaitPayment(flow PaymentFlow) {
	s.ResetTo(StageAwaitingPayment)
	s.Payment = &flow
}

func (s *Session) AwaitConfirmation(flow ConfirmationFlow) {
	s.ResetTo(StageAwaitingConfirmationCode)
	s.Confirmation = &flow
}

// SearchState returns the search flow when the stage owns it.
func (s *Session) SearchState() (*SearchFlow, bool) {
	if (s.Stage == StageAwaitingCategory || s.Stage == StageAwaitingService) && s.Search != nil {
		return s.Search, true
	}
	return nil, false
}

// PendingPayment returns the payment flow when the session is awaiting payment.
func (s *Session) PendingPayment() (*PaymentFlow, bool) {
	if s.Stage == StageAwaitingPayment && s.Payment != nil {
		return s.Payment, true
	}
	return nil, false
}

// PendingConfirmation returns the confirmation flow when a code is expected.
func (s *Session) PendingConfirmation() (*ConfirmationFlow, bool) {
	if s.Stage == StageAwaitingConfirmationCode && s.Confirmation != nil {
		return s.Confirmation, true
	}
	return nil, false
}

// AppendTurn adds a turn and drops the oldest ones beyond HistoryLimit.
func (s *Session) AppendTurn(role Role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content})
	if len(s.History) > HistoryLimit {
		s.History = append([]Turn(nil), s.History[len(s.History)-HistoryLimit:]...)
	}
}

// IsNewSegment reports whether a message at now starts a fresh
// conversational segment.
func (s *Session) IsNewSegment(now time.Time, gap time.Duration) bool {
	if s.LastInteractionAt == nil {
		return true
	}
	return now.Sub(*s.LastInteractionAt) > gap
}

func (s Session) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Session) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*s = *NewSession()
		return nil
	default:
		return fmt.Errorf("unsupported session_data type %T", src)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("decode session_data: %w", err)
	}
	return nil
}

// SessionRecord is a row of the sessions table.
type SessionRecord struct {
	UserID    string    `db:"user_id"`
	Data      Session   `db:"session_data"`
	UpdatedAt time.Time `db:"updated_at"`
}
