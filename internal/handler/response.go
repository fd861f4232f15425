package handler

import (
	"io"
	"net/http"

	"github.com/yourhelpa/helpa-server-go/internal/httputil"
	"github.com/yourhelpa/helpa-server-go/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// requestBody returns the body the signature gate verified, reading it
// directly when the route is not gated.
func requestBody(r *http.Request) ([]byte, error) {
	if body := middleware.RawBody(r.Context()); body != nil {
		return body, nil
	}
	return io.ReadAll(r.Body)
}
