package main

import (
	"log/slog"
	"net/http"
)

// NewRouter registers all routes and wraps them with the middleware chain.
func NewRouter(h *Handler, cfg Config, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Thresholds
	mux.HandleFunc("GET /api/v1/users/{userId}/thresholds", h.GetThresholds)
	mux.HandleFunc("PUT /api/v1/users/{userId}/thresholds", h.ReplaceThresholds)
	mux.HandleFunc("POST /api/v1/users/{userId}/thresholds", h.ReplaceThresholds)
	mux.HandleFunc("PATCH /api/v1/users/{userId}/thresholds", h.PatchThresholds)
	mux.HandleFunc("DELETE /api/v1/users/{userId}/thresholds", h.DeleteThresholds)

	mux.HandleFunc("POST /api/v1/users/{userId}/scans", h.Scan)
	mux.HandleFunc("GET /api/v1/products/{barcode}", h.GetProduct)
	mux.HandleFunc("GET /api/v1/history/stats", h.Stats)

	// Recovery → CORS → RequestLogging → JWTAuth → mux
	var handler http.Handler = mux
	handler = JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.DevBypassAuth)(handler)
	handler = RequestLogging(logger)(handler)
	handler = CORS(cfg.CORSAllowOrigin)(handler)
	handler = Recovery(logger)(handler)

	return handler
}
