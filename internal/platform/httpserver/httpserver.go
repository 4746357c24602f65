package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds the API server. Write timeout stays above the per-request context
// timeout so handlers can still write their timeout response. Server-internal
// errors go to logger at error level.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
