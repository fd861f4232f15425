package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/audit"
	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/repository"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

// ReconcileService settles gateway payment confirmations against the
// session that requested the payment.
type ReconcileService struct {
	users            repository.UserRepository
	transactions     repository.TransactionRepository
	events           repository.PaymentEventRepository
	ledger           repository.PaymentLedger
	sessions         *SessionService
	messenger        Messenger
	payerEmailDomain string
}

func NewReconcileService(
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	events repository.PaymentEventRepository,
	ledger repository.PaymentLedger,
	sessions *SessionService,
	messenger Messenger,
	payerEmailDomain string,
) *ReconcileService {
	return &ReconcileService{
		users:            users,
		transactions:     transactions,
		events:           events,
		ledger:           ledger,
		sessions:         sessions,
		messenger:        messenger,
		payerEmailDomain: payerEmailDomain,
	}
}

// Reconcile applies one confirmation. Every outcome other than an error is
// a successful acknowledgement; only Committed has side effects beyond the
// event log.
func (s *ReconcileService) Reconcile(ctx context.Context, conf model.PaymentConfirmation, raw json.RawMessage) (model.PaymentOutcome, error) {
	outcome, err := s.reconcile(ctx, conf)
	if err != nil {
		return "", err
	}

	if err := s.events.Record(ctx, model.CreatePaymentEventParams{
		EventType:        conf.EventType,
		PaymentReference: conf.PaymentReference,
		Outcome:          outcome,
		Payload:          raw,
	}); err != nil {
		log.Error().Err(err).Str("payment_reference", conf.PaymentReference).Msg("failed to record payment event")
	}
	return outcome, nil
}

func (s *ReconcileService) reconcile(ctx context.Context, conf model.PaymentConfirmation) (model.PaymentOutcome, error) {
	logger := log.With().
		Str("event_type", conf.EventType).
		Str("payment_reference", conf.PaymentReference).
		Logger()

	if conf.EventType != model.EventSuccessfulTransaction {
		logger.Info().Msg("ignoring payment event")
		return model.PaymentOutcomeIgnored, nil
	}
	if conf.PaymentReference == "" {
		logger.Warn().Msg("payment event without reference")
		return model.PaymentOutcomeSessionMismatch, nil
	}

	existing, err := s.transactions.FindByReference(ctx, conf.PaymentReference)
	if err != nil {
		return "", fmt.Errorf("find transaction: %w", err)
	}
	if existing != nil {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventPaymentDuplicate,
			UserID:  existing.UserID,
			Source:  "monnify",
			Details: map[string]interface{}{"payment_reference": conf.PaymentReference},
		})
		return model.PaymentOutcomeDuplicate, nil
	}

	user, err := s.resolvePayer(ctx, conf.PayerEmail)
	if err != nil {
		return "", err
	}
	if user == nil {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventPaymentUnknownPayer,
			Source:  "monnify",
			Details: map[string]interface{}{"payment_reference": conf.PaymentReference},
		})
		return model.PaymentOutcomeUnknownPayer, nil
	}

	var (
		outcome  model.PaymentOutcome
		notified *model.Transaction
	)
	err = s.sessions.WithLocked(ctx, user.ID, func(session *model.Session) error {
		pending, ok := session.PendingPayment()
		if !ok || pending.PaymentReference != conf.PaymentReference {
			audit.Log(ctx, audit.Event{
				Type:   audit.EventPaymentMismatch,
				UserID: user.ID,
				Source: "monnify",
				Details: map[string]interface{}{
					"payment_reference": conf.PaymentReference,
					"stage":             string(session.Stage),
				},
			})
			outcome = model.PaymentOutcomeSessionMismatch
			return nil
		}

		amount := conf.AmountPaid
		if amount <= 0 {
			amount = pending.Price
		} else if math.Abs(amount-pending.Price) > 0.005 {
			logger.Warn().
				Float64("amount_paid", amount).
				Float64("expected", pending.Price).
				Msg("paid amount differs from quoted price")
		}

		providerID := pending.ProviderID
		params := model.CreateTransactionParams{
			UserID:           user.ID,
			ProviderID:       &providerID,
			Amount:           amount,
			Status:           model.TransactionPaid,
			PaymentReference: conf.PaymentReference,
			ServiceDetails: model.ServiceDetails{
				ServiceName: pending.ServiceName,
				Description: conf.Description,
			},
		}

		session.ResetTo(model.StageMenu)
		txn, inserted, err := s.ledger.Settle(ctx, params, session)
		if err != nil {
			return fmt.Errorf("settle payment: %w", err)
		}
		if !inserted {
			outcome = model.PaymentOutcomeDuplicate
			return nil
		}

		outcome = model.PaymentOutcomeCommitted
		notified = txn
		return nil
	})
	if err != nil {
		return "", err
	}

	if notified != nil {
		audit.Log(ctx, audit.Event{
			Type:   audit.EventPaymentCommitted,
			UserID: user.ID,
			Source: "monnify",
			Details: map[string]interface{}{
				"payment_reference": notified.PaymentReference,
				"amount":            notified.Amount,
			},
		})
		s.notify(ctx, user, notified)
	}
	return outcome, nil
}

// resolvePayer finds the user by the email the gateway reports, which is
// either a stored email or the synthetic address built from the phone.
func (s *ReconcileService) resolvePayer(ctx context.Context, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find payer by email: %w", err)
	}
	if user != nil {
		return user, nil
	}

	local, domain, found := strings.Cut(email, "@")
	if !found || !strings.EqualFold(domain, s.payerEmailDomain) {
		return nil, nil
	}
	phone := util.NormalizePhone(local)
	if phone == "" {
		return nil, nil
	}
	user, err = s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("find payer by phone: %w", err)
	}
	return user, nil
}

func (s *ReconcileService) notify(ctx context.Context, user *model.User, txn *model.Transaction) {
	text := fmt.Sprintf("%s\nReference: %s\nAmount: %s\n\nOnce the service is delivered, confirm it here. If something went wrong, you can appeal.",
		msgPaymentSuccess, txn.PaymentReference, formatNaira(txn.Amount))
	dispatch(ctx, s.messenger, user.Phone, []Outbound{buttonsOut(text,
		model.Button{ID: actionID(ActionConfirmTransaction, txn.PaymentReference), Title: "Confirm"},
		model.Button{ID: actionID(ActionAppealTransaction, txn.PaymentReference), Title: "Appeal"},
		model.Button{ID: transactionsID, Title: "My transactions"},
	)})
}
