package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSignatureRejected    EventType = "signature_rejected"
	EventSignatureBypassed    EventType = "signature_bypassed"
	EventVerifyTokenRejected  EventType = "verify_token_rejected"
	EventRateLimitExceed      EventType = "rate_limit_exceeded"
	EventPaymentCommitted     EventType = "payment_committed"
	EventPaymentDuplicate     EventType = "payment_duplicate"
	EventPaymentMismatch      EventType = "payment_integrity_mismatch"
	EventPaymentUnknownPayer  EventType = "payment_unknown_payer"
	EventCodeIssued           EventType = "confirmation_code_issued"
	EventCodeRejected         EventType = "confirmation_code_rejected"
	EventTransactionStatusSet EventType = "transaction_status_changed"
)

type Event struct {
	Type      EventType
	UserID    string
	Source    string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.Source != "" {
		logger = logger.With().Str("source", event.Source).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	if isWarning(event.Type) {
		logEvent = logger.Warn()
	}
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func isWarning(t EventType) bool {
	switch t {
	case EventSignatureRejected, EventSignatureBypassed, EventVerifyTokenRejected,
		EventPaymentMismatch, EventPaymentUnknownPayer, EventCodeRejected:
		return true
	}
	return false
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case float64:
		return e.Float64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP returns the first forwarded address, falling back to RemoteAddr
// without its port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
