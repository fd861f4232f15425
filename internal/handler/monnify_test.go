package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourhelpa/helpa-server-go/internal/middleware"
	"github.com/yourhelpa/helpa-server-go/internal/model"
)

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, conf model.PaymentConfirmation, raw json.RawMessage) (model.PaymentOutcome, error) {
	args := m.Called(ctx, conf, raw)
	return args.Get(0).(model.PaymentOutcome), args.Error(1)
}

const successfulPayment = `{
  "eventType": "SUCCESSFUL_TRANSACTION",
  "eventData": {
    "transactionReference": "MNFY|1",
    "paymentReference": "HLP-123",
    "amountPaid": "5000.00",
    "paymentDescription": "Payment for plumbing by Ace Plumbing",
    "customer": {"name": "Ada", "email": "2348012345678@yourhelpa.com"}
  }
}`

func TestMonnifyHandler_Webhook(t *testing.T) {
	t.Run("passes the confirmation to reconciliation", func(t *testing.T) {
		reconciler := &mockReconciler{}
		reconciler.On("Reconcile", mock.Anything, model.PaymentConfirmation{
			EventType:        model.EventSuccessfulTransaction,
			PaymentReference: "HLP-123",
			AmountPaid:       5000,
			PayerEmail:       "2348012345678@yourhelpa.com",
			Description:      "Payment for plumbing by Ace Plumbing",
		}, mock.Anything).Return(model.PaymentOutcomeCommitted, nil)

		h := NewMonnifyHandler(reconciler)
		rec := httptest.NewRecorder()
		h.Webhook(rec, httptest.NewRequest(http.MethodPost, "/monnify-webhook", bytes.NewBufferString(successfulPayment)))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "committed", body["outcome"])
		reconciler.AssertExpectations(t)
	})

	t.Run("acknowledges mismatches", func(t *testing.T) {
		reconciler := &mockReconciler{}
		reconciler.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).Return(model.PaymentOutcomeSessionMismatch, nil)

		h := NewMonnifyHandler(reconciler)
		rec := httptest.NewRecorder()
		h.Webhook(rec, httptest.NewRequest(http.MethodPost, "/monnify-webhook", bytes.NewBufferString(successfulPayment)))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("flags events accepted without signature checking", func(t *testing.T) {
		var buf bytes.Buffer
		original := log.Logger
		log.Logger = zerolog.New(&buf)
		t.Cleanup(func() { log.Logger = original })

		reconciler := &mockReconciler{}
		reconciler.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).Return(model.PaymentOutcomeCommitted, nil)

		h := NewMonnifyHandler(reconciler)
		req := httptest.NewRequest(http.MethodPost, "/monnify-webhook", bytes.NewBufferString(successfulPayment))
		req = req.WithContext(context.WithValue(req.Context(), middleware.InsecureContextKey, true))
		rec := httptest.NewRecorder()
		h.Webhook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, buf.String(), "reconciling unsigned monnify webhook")
		assert.Contains(t, buf.String(), `"unsigned":true`)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		h := NewMonnifyHandler(&mockReconciler{})
		rec := httptest.NewRecorder()
		h.Webhook(rec, httptest.NewRequest(http.MethodPost, "/monnify-webhook", bytes.NewBufferString("not json")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 500 when reconciliation fails", func(t *testing.T) {
		reconciler := &mockReconciler{}
		reconciler.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).Return(model.PaymentOutcome(""), errors.New("db down"))

		h := NewMonnifyHandler(reconciler)
		rec := httptest.NewRecorder()
		h.Webhook(rec, httptest.NewRequest(http.MethodPost, "/monnify-webhook", bytes.NewBufferString(successfulPayment)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
