package model

// Stage is the position of a session in the conversation state machine.
type Stage string

const (
	StageStart                    Stage = "start"
	StageAwaitingCategory         Stage = "awaiting_category"
	StageAwaitingService          Stage = "awaiting_service"
	StageAwaitingPayment          Stage = "awaiting_payment"
	StageAwaitingConfirmationCode Stage = "awaiting_confirmation_code"
	StageMenu                     Stage = "menu"
	StageConversation             Stage = "conversation"
)

var stages = []Stage{
	StageStart,
	StageAwaitingCategory,
	StageAwaitingService,
	StageAwaitingPayment,
	StageAwaitingConfirmationCode,
	StageMenu,
	StageConversation,
}

func (s Stage) Valid() bool {
	for _, v := range stages {
		if s == v {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionPaid      TransactionStatus = "PAID"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionAppealed  TransactionStatus = "APPEALED"
)

// CanTransition reports whether moving from s to next keeps the status
// sequence forward only.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	switch s {
	case TransactionPending:
		return next == TransactionPaid
	case TransactionPaid:
		return next == TransactionCompleted || next == TransactionAppealed
	default:
		return false
	}
}

type ConfirmationType string

const (
	ConfirmationConfirm ConfirmationType = "confirm"
	ConfirmationAppeal  ConfirmationType = "appeal"
)

// TargetStatus is the transaction status a verified code moves to.
func (c ConfirmationType) TargetStatus() TransactionStatus {
	if c == ConfirmationAppeal {
		return TransactionAppealed
	}
	return TransactionCompleted
}

type PaymentOutcome string

const (
	PaymentOutcomeCommitted       PaymentOutcome = "committed"
	PaymentOutcomeDuplicate       PaymentOutcome = "duplicate"
	PaymentOutcomeUnknownPayer    PaymentOutcome = "unknown_payer"
	PaymentOutcomeSessionMismatch PaymentOutcome = "session_mismatch"
	PaymentOutcomeIgnored         PaymentOutcome = "ignored_event_type"
)
