package client

import "fmt"

// Error codes surfaced to the renderer through OnError.
const (
	CodeNoActiveRoom          = "no_active_room"
	CodeMediaAccessDenied     = "media_access_denied"
	CodeMalformedSignal       = "malformed_signal"
	CodeTransportDisconnected = "transport_disconnected"
	CodeTransport             = "transport_error"
)

// Error carries a stable code alongside a human-readable message so the
// renderer can branch without string matching.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrNoActiveRoom rejects room-scoped intents issued before Open.
var ErrNoActiveRoom = &Error{Code: CodeNoActiveRoom, Message: "no active room"}
