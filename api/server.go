package api

import (
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	// The webhook handler may wait out the whole reconcile window before answering.
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

// NewServer returns the HTTP server cmd/api runs. PORT overrides the configured port.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
