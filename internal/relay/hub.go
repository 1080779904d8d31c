package relay

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/proto"
	"github.com/meetwire/meetwire/internal/store"
)

// Hub coordinates rooms and message fan-out. All state is owned by the Run
// loop; the only entry points are the registration channels and each
// client's Commands channel.
type Hub struct {
	store  store.Store
	logger *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// NewHub creates a hub. store may be nil in tests that don't exercise
// persistence; history and deletes then degrade to no-ops.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	return &Hub{
		store:      st,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
	}
}

// RegisterClient adds the client and starts pumping its commands into the
// run loop. Presence is broadcast to everyone.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes the client from every room and broadcasts the
// shrunk presence set.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			go h.pump(ctx, c)
			h.broadcastPresence()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			for room := range c.rooms {
				h.removeFromRoom(c, room)
			}
			h.broadcastPresence()
		case cc := <-h.commands:
			h.handle(ctx, cc.client, cc.cmd)
		}
	}
}

// pump forwards one client's commands into the run loop. It exits when the
// transport closes the Commands channel or the hub stops, so disconnected
// clients leave no goroutine behind.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	// Commands still buffered when the client unregistered must not
	// resurrect it in a room.
	if _, ok := h.clients[c]; !ok {
		return
	}
	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(ctx, c, cmd.Join)
	case CommandSend:
		h.handleSend(ctx, c, cmd.SendKind, cmd.Send)
	case CommandDelete:
		h.handleDelete(ctx, c, cmd.Delete)
	case CommandTyping:
		h.forward(c, cmd.Typing.Room, proto.EventTyping, proto.TypingData{
			Room: cmd.Typing.Room, Identity: c.Identity,
		})
	case CommandStopTyping:
		h.forward(c, cmd.Typing.Room, proto.EventStopTyping, proto.TypingData{
			Room: cmd.Typing.Room, Identity: c.Identity,
		})
	case CommandTranscript:
		h.forward(c, cmd.Trans.Room, proto.EventSendTranscript, cmd.Trans)
	case CommandTTS:
		h.forward(c, cmd.TTS.Room, proto.EventPlayTTS, proto.TTSData{
			Room: cmd.TTS.Room, Identity: c.Identity, Text: cmd.TTS.Text,
		})
	case CommandSignal:
		h.forward(c, cmd.Signal.Room, proto.EventSignal, cmd.Signal)
	case CommandClearHistory:
		h.handleClear(ctx, c, cmd.Room)
	}
}

// handleJoin subscribes the client to the room and replays stored history
// to the joiner only. A client is in at most one room; joining another
// leaves the previous one.
func (h *Hub) handleJoin(ctx context.Context, c *Client, join proto.JoinData) {
	if join.Room == "" {
		return
	}
	for room := range c.rooms {
		if room != join.Room {
			h.removeFromRoom(c, room)
		}
	}

	members, ok := h.rooms[join.Room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[join.Room] = members
	}
	members[c] = struct{}{}
	c.rooms[join.Room] = struct{}{}

	history := h.loadHistory(ctx, join.Room)
	h.sendTo(c, proto.EventLoadHistory, history)
}

func (h *Hub) loadHistory(ctx context.Context, room string) []proto.ChatMessageData {
	out := []proto.ChatMessageData{}
	if h.store == nil {
		return out
	}
	msgs, err := h.store.ListRoomMessages(ctx, room)
	if err != nil {
		h.log().Error().Err(err).Str("room", room).Msg("load history failed")
		return out
	}
	for _, m := range msgs {
		out = append(out, chatMessage(m))
	}
	return out
}

// handleSend persists the message and fans the authoritative copy out to
// the whole room, sender included.
func (h *Hub) handleSend(ctx context.Context, c *Client, kind string, send proto.SendData) {
	if send.Room == "" {
		return
	}
	msg := &store.Message{
		Room:         send.Room,
		Identity:     c.Identity,
		Kind:         kind,
		Content:      send.Content,
		OriginalName: send.OriginalName,
		CreatedAt:    time.Now(),
	}
	if h.store != nil {
		if err := h.store.SaveMessage(ctx, msg); err != nil {
			h.log().Error().Err(err).Str("room", send.Room).Msg("save message failed")
			return
		}
	}
	h.broadcast(send.Room, proto.EventChatMessage, chatMessage(msg))
}

// handleDelete verifies ownership before fanning out the confirmation.
func (h *Hub) handleDelete(ctx context.Context, c *Client, del proto.DeleteMessageData) {
	if h.store != nil {
		err := h.store.DeleteMessage(ctx, del.ID, c.Identity)
		if errors.Is(err, store.ErrNotFound) {
			h.log().Warn().Int64("id", del.ID).Str("identity", c.Identity).Msg("delete rejected")
			return
		}
		if err != nil {
			h.log().Error().Err(err).Int64("id", del.ID).Msg("delete message failed")
			return
		}
	}
	h.broadcast(del.Room, proto.EventDeleteMessage, proto.DeleteMessageData{
		ID: del.ID, Identity: c.Identity, Room: del.Room,
	})
}

func (h *Hub) handleClear(ctx context.Context, c *Client, room string) {
	if room == "" {
		return
	}
	if h.store != nil {
		if err := h.store.ClearRoom(ctx, room); err != nil {
			h.log().Error().Err(err).Str("room", room).Msg("clear room failed")
			return
		}
	}
	h.broadcast(room, proto.EventHistoryCleared, proto.RoomData{Room: room})
}

// broadcast delivers an event to every room member, sender included.
func (h *Hub) broadcast(room, event string, payload any) {
	for member := range h.rooms[room] {
		h.sendTo(member, event, payload)
	}
}

// forward delivers an event to every room member except the sender.
func (h *Hub) forward(sender *Client, room, event string, payload any) {
	if room == "" {
		return
	}
	for member := range h.rooms[room] {
		if member == sender {
			continue
		}
		h.sendTo(member, event, payload)
	}
}

// broadcastPresence sends the sorted set of connected identities to every
// client, roomed or not.
func (h *Hub) broadcastPresence() {
	seen := make(map[string]struct{}, len(h.clients))
	identities := make([]string, 0, len(h.clients))
	for c := range h.clients {
		if _, dup := seen[c.Identity]; dup {
			continue
		}
		seen[c.Identity] = struct{}{}
		identities = append(identities, c.Identity)
	}
	sort.Strings(identities)
	for c := range h.clients {
		h.sendTo(c, proto.EventUpdatePresence, identities)
	}
}

func (h *Hub) sendTo(c *Client, event string, payload any) {
	env, err := proto.NewEnvelope(event, payload)
	if err != nil {
		h.log().Error().Err(err).Str("event", event).Msg("encode event failed")
		return
	}
	select {
	case c.Events <- env:
	default:
		// Drop if slow consumer.
	}
}

func (h *Hub) removeFromRoom(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func chatMessage(m *store.Message) proto.ChatMessageData {
	return proto.ChatMessageData{
		ID:               m.ID,
		Identity:         m.Identity,
		Room:             m.Room,
		Kind:             m.Kind,
		Content:          m.Content,
		OriginalName:     m.OriginalName,
		TimestampDisplay: m.CreatedAt.Format("15:04"),
	}
}

func (h *Hub) log() *zerolog.Logger {
	if h.logger != nil {
		return h.logger
	}
	nop := zerolog.Nop()
	return &nop
}
