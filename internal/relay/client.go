package relay

import "github.com/meetwire/meetwire/internal/proto"

// Client is one connected participant as seen by the hub. The transport
// layer pumps decoded commands in and drains Events to the socket.
type Client struct {
	ID       string
	Identity string
	Commands chan *Command
	Events   chan proto.Envelope

	rooms map[string]struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id, identity string) *Client {
	if identity == "" {
		identity = id
	}
	return &Client{
		ID:       id,
		Identity: identity,
		Commands: make(chan *Command, 16),
		Events:   make(chan proto.Envelope, 16),
		rooms:    make(map[string]struct{}),
	}
}
