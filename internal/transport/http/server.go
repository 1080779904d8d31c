package http

import (
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/config"
	"github.com/meetwire/meetwire/internal/relay"
	"github.com/meetwire/meetwire/internal/store"
)

// NewServer builds the relay's HTTP server: the websocket endpoint plus the
// REST routes.
func NewServer(hub *relay.Hub, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, logger))
	mux.Handle("/", NewAPIHandlers(st, logger).Router())

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
