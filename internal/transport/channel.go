package transport

import (
	"context"
	"encoding/json"
)

// Handler receives the raw payload of one named event.
type Handler func(data json.RawMessage)

// Channel is a single bidirectional event connection to the relay. One
// persistent connection per client session; ordering is preserved within a
// connection, not across reconnects.
type Channel interface {
	Connect(ctx context.Context) error
	Emit(event string, payload any) error
	On(event string, h Handler)
	Off(event string)
	Close() error
}
