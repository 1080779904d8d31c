package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/proto"
	"github.com/meetwire/meetwire/internal/relay"
	"github.com/meetwire/meetwire/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to relay.Client.
type WSHandler struct {
	hub *relay.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *relay.Hub, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	identity := r.URL.Query().Get("identity")
	if identity == "" {
		identity = utils.GuestIdentity()
	}

	client := relay.NewClient(uuid.NewString(), identity)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	// readLoop is the sole sender; both loops have returned by the time the
	// deferred close runs, and it lets the hub's pump goroutine exit.
	defer close(client.Commands)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(600)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *relay.Client, limiter *rateLimiter) error {
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		if !limiter.allow() {
			h.log.Warn().Str("client_id", client.ID).Msg("rate limit exceeded, dropping event")
			continue
		}

		cmd, err := envelopeToCommand(env)
		if err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Str("event", env.Event).Msg("malformed event dropped")
			continue
		}
		if cmd != nil {
			client.Commands <- cmd
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *relay.Client) error {
	for {
		select {
		case env, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, env); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
