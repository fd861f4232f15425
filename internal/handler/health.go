package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/config"
	"github.com/yourhelpa/helpa-server-go/internal/httputil"
)

// Check is one backing dependency reported by /health.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health reports 503 when any dependency fails its ping.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("check", c.Name).Msg("health check failed")
			status = http.StatusServiceUnavailable
			results[c.Name] = "unreachable"
			continue
		}
		results[c.Name] = "ok"
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
		"checks":    results,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteText(w, http.StatusOK, "WhatsApp chatbot webhook running")
}
