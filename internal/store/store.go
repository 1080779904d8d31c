package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist or is not
// owned by the requesting identity.
var ErrNotFound = errors.New("store: not found")

// Message is a persisted chat message. Identity is the sender's user id;
// rooms are plain string ids derived from the participant pair.
type Message struct {
	ID           int64
	Room         string
	Identity     string
	Kind         string
	Content      string
	OriginalName string
	CreatedAt    time.Time
}

// Store handles message persistence for the relay.
type Store interface {
	// SaveMessage persists a message and fills in its assigned ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListRoomMessages retrieves a room's messages in chronological order.
	ListRoomMessages(ctx context.Context, room string) ([]*Message, error)

	// DeleteMessage removes one message, verifying it belongs to identity.
	// Returns ErrNotFound when no such owned message exists.
	DeleteMessage(ctx context.Context, id int64, identity string) error

	// ClearRoom removes every message stored for a room.
	ClearRoom(ctx context.Context, room string) error

	// Close closes the underlying database connection.
	Close() error
}
