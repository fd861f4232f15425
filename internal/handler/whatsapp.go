package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/audit"
	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
	"github.com/yourhelpa/helpa-server-go/internal/httputil"
	"github.com/yourhelpa/helpa-server-go/internal/service"
	"github.com/yourhelpa/helpa-server-go/internal/util"
	"github.com/yourhelpa/helpa-server-go/internal/whatsapp"
)

// InboundHandler consumes classified chat messages.
type InboundHandler interface {
	HandleInbound(ctx context.Context, event service.InboundEvent) error
}

type WhatsAppHandler struct {
	dialogue    InboundHandler
	verifyToken string
}

func NewWhatsAppHandler(dialogue InboundHandler, verifyToken string) *WhatsAppHandler {
	return &WhatsAppHandler{dialogue: dialogue, verifyToken: verifyToken}
}

// Verify answers Meta's subscription handshake by echoing hub.challenge.
func (h *WhatsAppHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || !util.ConstantTimeEqual(token, h.verifyToken) {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventVerifyTokenRejected,
			Source:  "meta",
			Details: map[string]interface{}{"mode": mode},
		})
		httputil.WriteError(w, apperrors.Forbidden("Verification failed"))
		return
	}

	log.Info().Msg("webhook verified")
	httputil.WriteText(w, http.StatusOK, challenge)
}

// Webhook handles one message delivery. Deliveries without a message are
// acknowledged without touching any state.
func (h *WhatsAppHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := requestBody(r)
	if err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Failed to read request body"))
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("invalid whatsapp webhook payload")
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	event := service.Classify(&payload)
	if event.Kind == service.EventNoOp {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	logger := log.With().
		Str("message_id", event.MessageID).
		Str("kind", event.Kind.String()).
		Logger()
	logger.Debug().Msg("inbound message")

	if err := h.dialogue.HandleInbound(r.Context(), event); err != nil {
		logger.Error().Err(err).Msg("failed to handle inbound message")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
