package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/proto"
)

// WS implements Channel over a single websocket connection.
type WS struct {
	url string
	log *zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool

	onDisconnect func(error)
}

// NewWS builds a channel that will dial the given ws:// URL on Connect.
func NewWS(url string, logger *zerolog.Logger) *WS {
	return &WS{
		url:      url,
		log:      logger,
		handlers: make(map[string]Handler),
	}
}

// OnDisconnect registers a hook fired once when the connection drops for any
// reason other than an explicit Close. Must be set before Connect.
func (w *WS) OnDisconnect(fn func(error)) {
	w.onDisconnect = fn
}

// Connect dials the relay and starts the read loop. The passed context bounds
// the dial only; the connection itself lives until Close or a read error.
func (w *WS) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.url, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())

	w.mu.Lock()
	w.conn = conn
	w.ctx = connCtx
	w.cancel = cancel
	w.closed = false
	w.mu.Unlock()

	go w.readLoop(connCtx, conn)
	return nil
}

// Emit sends one named event. Safe for concurrent use.
func (w *WS) Emit(event string, payload any) error {
	env, err := proto.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	w.mu.RLock()
	conn, ctx := w.conn, w.ctx
	w.mu.RUnlock()
	if conn == nil {
		return errors.New("channel not connected")
	}

	if err := wsjson.Write(ctx, conn, env); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// On registers the handler for a named event, replacing any previous one.
func (w *WS) On(event string, h Handler) {
	w.mu.Lock()
	w.handlers[event] = h
	w.mu.Unlock()
}

// Off removes the handler for a named event.
func (w *WS) Off(event string) {
	w.mu.Lock()
	delete(w.handlers, event)
	w.mu.Unlock()
}

// Close shuts the connection down. Idempotent.
func (w *WS) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn, cancel := w.conn, w.cancel
	w.conn = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "bye")
	}
	return nil
}

func (w *WS) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			w.mu.RLock()
			closed := w.closed
			w.mu.RUnlock()
			if closed || errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				err = nil
			default:
				if errors.Is(err, io.EOF) {
					err = nil
				}
			}
			if err != nil && w.log != nil {
				w.log.Warn().Err(err).Msg("ws read failed")
			}
			if w.onDisconnect != nil {
				w.onDisconnect(err)
			}
			return
		}

		w.mu.RLock()
		h := w.handlers[env.Event]
		w.mu.RUnlock()
		if h == nil {
			if w.log != nil {
				w.log.Debug().Str("event", env.Event).Msg("no handler for event")
			}
			continue
		}
		h(env.Data)
	}
}
