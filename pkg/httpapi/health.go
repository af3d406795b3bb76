// Package httpapi holds the plain HTTP surface served alongside the
// WebSocket upgrade endpoint: a liveness check and the legacy single-shot
// audio upload path kept from the original server for firmware variants
// that never adopted the WebSocket protocol.
package httpapi

import (
	"net/http"

	"github.com/bytedance/sonic"
)

// RegisterHealth adds the GET /health liveness endpoint.
func RegisterHealth(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", handleHealth)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := sonic.Marshal(map[string]string{"status": "ok"})
	w.Write(body)
}
