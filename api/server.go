// Package api assembles the HTTP server that fronts the report router.
package api

import (
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/marketreports-backend/pkg/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// NewServer binds handler to the configured port. PORT wins over the config
// value so the binary runs unchanged on hosts that inject it. WriteTimeout is
// left unset because CSV exports stream for as long as the rows last.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}
