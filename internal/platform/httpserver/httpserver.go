package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server the callback endpoints run on. Callbacks carry
// whole record documents, so the body timeouts are generous relative to the
// header timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
