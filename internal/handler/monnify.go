package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
	"github.com/yourhelpa/helpa-server-go/internal/httputil"
	"github.com/yourhelpa/helpa-server-go/internal/middleware"
	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/monnify"
)

// PaymentReconciler settles verified gateway notifications.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, conf model.PaymentConfirmation, raw json.RawMessage) (model.PaymentOutcome, error)
}

type MonnifyHandler struct {
	reconciler PaymentReconciler
}

func NewMonnifyHandler(reconciler PaymentReconciler) *MonnifyHandler {
	return &MonnifyHandler{reconciler: reconciler}
}

// Webhook acknowledges every well-formed notification, including ones that
// do not match a pending payment, so the gateway stops retrying them.
func (h *MonnifyHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := requestBody(r)
	if err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Failed to read request body"))
		return
	}

	event, err := monnify.ParseWebhookEvent(body)
	if err != nil {
		log.Warn().Err(err).Msg("invalid monnify webhook payload")
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	unsigned := middleware.IsInsecure(r.Context())
	if unsigned {
		log.Warn().
			Str("payment_reference", event.EventData.PaymentReference).
			Msg("reconciling unsigned monnify webhook: signature checking is disabled")
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), event.Confirmation(), json.RawMessage(body))
	if err != nil {
		log.Error().Err(err).
			Str("payment_reference", event.EventData.PaymentReference).
			Msg("failed to reconcile payment")
		httputil.WriteError(w, err)
		return
	}

	log.Info().
		Str("payment_reference", event.EventData.PaymentReference).
		Str("outcome", string(outcome)).
		Bool("unsigned", unsigned).
		Msg("payment event processed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "outcome": string(outcome)})
}
