package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/call"
	"github.com/meetwire/meetwire/internal/proto"
	"github.com/meetwire/meetwire/internal/transport"
)

// Handlers are the renderer callbacks. Nil entries are skipped. Callbacks
// fire outside the client's lock but may arrive from transport or timer
// goroutines; renderers marshal to their own loop.
type Handlers struct {
	OnMessage          func(msg proto.ChatMessageData)
	OnHistory          func(msgs []proto.ChatMessageData)
	OnMessageDeleted   func(id int64)
	OnTypingChanged    func(active bool, identity string)
	OnPresenceChanged  func(members []string)
	OnCallStateChanged func(state call.State)
	OnRemoteTrack      func(track *webrtc.TrackRemote)
	OnTranscript       func(t proto.TranscriptData)
	OnError            func(err error)
	OnLeaveRoom        func(room string)
}

// Options configures a Client.
type Options struct {
	Identity   string
	Channel    transport.Channel
	Handlers   Handlers
	TypingIdle time.Duration
	NewPeer    func() (call.PeerConnection, error)
	Media      call.Media
	Log        *zerolog.Logger
}

// Client is the session controller: it owns the channel, the single active
// room, the typing coordinator and the call engine, and serializes every
// inbound event and local intent through one mutex.
type Client struct {
	identity string
	ch       transport.Channel
	handlers Handlers
	logger   *zerolog.Logger

	engine *call.Engine
	typing *typingCoordinator
	// typingExpiry bounds how long a peer's typing indicator may stay up
	// without a refresh, covering a stop_typing lost to a disconnect or a
	// slow-consumer drop on the relay.
	typingExpiry time.Duration

	mu           sync.Mutex
	sess         session
	remoteTyping *time.Timer
}

// New wires a client to its channel. The channel is not connected yet; call
// Connect before Open.
func New(opts Options) *Client {
	idle := opts.TypingIdle
	if idle <= 0 {
		idle = time.Second
	}
	c := &Client{
		identity:     opts.Identity,
		ch:           opts.Channel,
		handlers:     opts.Handlers,
		logger:       opts.Log,
		typingExpiry: 3 * idle,
	}

	c.engine = call.NewEngine(call.Options{
		Identity: opts.Identity,
		NewPeer:  opts.NewPeer,
		Media:    opts.Media,
		Send: func(sig proto.SignalData) error {
			return c.emit(proto.EventSignal, sig)
		},
		OnState:       c.handlers.OnCallStateChanged,
		OnRemoteTrack: c.handlers.OnRemoteTrack,
		Log:           opts.Log,
	})

	c.typing = newTypingCoordinator(opts.TypingIdle,
		func() { c.emitTyping(proto.EventTyping) },
		func() { c.emitTyping(proto.EventStopTyping) },
	)

	for _, event := range []string{
		proto.EventChatMessage,
		proto.EventLoadHistory,
		proto.EventDeleteMessage,
		proto.EventTyping,
		proto.EventStopTyping,
		proto.EventUpdatePresence,
		proto.EventSendTranscript,
		proto.EventPlayTTS,
		proto.EventSignal,
		proto.EventHistoryCleared,
	} {
		event := event
		c.ch.On(event, func(data json.RawMessage) {
			c.handleEvent(event, data)
		})
	}

	return c
}

// Connect establishes the underlying channel connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.ch.Connect(ctx)
}

// Identity returns the local user id.
func (c *Client) Identity() string { return c.identity }

// Room returns the active room id, empty when none is open.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.room
}

// Messages returns a copy of the active room's message list.
func (c *Client) Messages() []proto.ChatMessageData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]proto.ChatMessageData(nil), c.sess.messages...)
}

// CallState reports the call engine state.
func (c *Client) CallState() call.State { return c.engine.State() }

// Open joins the private room shared with target. Opening the room that is
// already active is a no-op. Switching rooms tears down any call, flushes
// typing state and fires the leave observable before the new join is sent.
func (c *Client) Open(target string) (string, error) {
	room := DeriveRoomID(c.identity, target)

	c.mu.Lock()
	prev := c.sess.room
	c.mu.Unlock()
	if prev == room {
		return room, nil
	}
	if prev != "" {
		c.leave(prev)
	}

	c.mu.Lock()
	c.stopRemoteTypingLocked()
	c.sess.reset(room)
	c.mu.Unlock()

	if err := c.emit(proto.EventJoin, proto.JoinData{Identity: c.identity, Room: room}); err != nil {
		c.mu.Lock()
		c.sess.reset("")
		c.mu.Unlock()
		return "", err
	}
	return room, nil
}

// Close leaves the active room locally. No wire message is sent; the relay
// notices the departure when the connection drops or a new join arrives.
// Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	prev := c.sess.room
	c.mu.Unlock()
	if prev == "" {
		return
	}
	c.leave(prev)
	c.mu.Lock()
	c.stopRemoteTypingLocked()
	c.sess.reset("")
	c.mu.Unlock()
}

// leave flushes room-scoped state while prev is still the active room, so
// the trailing stop_typing targets the right room.
func (c *Client) leave(prev string) {
	c.typing.Flush()
	c.engine.Close()
	if c.handlers.OnLeaveRoom != nil {
		c.handlers.OnLeaveRoom(prev)
	}
}

// Shutdown releases everything: call session, typing timer, channel.
func (c *Client) Shutdown() error {
	c.Close()
	c.typing.Cancel()
	c.engine.Close()
	return c.ch.Close()
}

// HandleDisconnect reacts to the transport dropping: the call session and
// room state are discarded locally and the renderer is told. A reconnect
// needs a fresh Open.
func (c *Client) HandleDisconnect(err error) {
	c.typing.Cancel()
	c.engine.Close()

	c.mu.Lock()
	prev := c.sess.room
	c.stopRemoteTypingLocked()
	c.sess.reset("")
	c.mu.Unlock()

	if prev != "" && c.handlers.OnLeaveRoom != nil {
		c.handlers.OnLeaveRoom(prev)
	}
	c.surface(newError(CodeTransportDisconnected, "connection lost: %v", err))
}

// SendMessage submits a text message to the active room. The message shows
// up locally only when the relay echoes it back as chat_message.
func (c *Client) SendMessage(content string) error {
	return c.send(proto.EventSendMessage, content, "")
}

// SendImage submits an image, content is the encoded payload.
func (c *Client) SendImage(content string) error {
	return c.send(proto.EventSendImage, content, "")
}

// SendFile submits a file payload along with its original name.
func (c *Client) SendFile(content, originalName string) error {
	return c.send(proto.EventSendFile, content, originalName)
}

func (c *Client) send(event, content, originalName string) error {
	room := c.Room()
	if room == "" {
		return ErrNoActiveRoom
	}
	// Sending ends the typing burst, as the composed text is gone.
	c.typing.Flush()
	return c.emit(event, proto.SendData{
		Identity:     c.identity,
		Room:         room,
		Content:      content,
		OriginalName: originalName,
	})
}

// SendTTS asks the relay to fan a synthesized-speech request to the peer.
func (c *Client) SendTTS(text string) error {
	room := c.Room()
	if room == "" {
		return ErrNoActiveRoom
	}
	return c.emit(proto.EventSendTTS, proto.TTSData{Room: room, Identity: c.identity, Text: text})
}

// SendTranscript streams a speech transcript fragment to the peer.
func (c *Client) SendTranscript(text string, final bool) error {
	room := c.Room()
	if room == "" {
		return ErrNoActiveRoom
	}
	return c.emit(proto.EventSendTranscript, proto.TranscriptData{
		Room:     room,
		Identity: c.identity,
		Text:     text,
		Final:    final,
	})
}

// DeleteMessage requests a deletion. The local copy stays until the relay
// confirms with a delete_message fan-out.
func (c *Client) DeleteMessage(id int64) error {
	room := c.Room()
	if room == "" {
		return ErrNoActiveRoom
	}
	return c.emit(proto.EventDeleteMessage, proto.DeleteMessageData{
		ID:       id,
		Identity: c.identity,
		Room:     room,
	})
}

// ClearHistory asks the relay to wipe the room's stored messages.
func (c *Client) ClearHistory() error {
	room := c.Room()
	if room == "" {
		return ErrNoActiveRoom
	}
	return c.emit(proto.EventClearHistory, proto.RoomData{Room: room})
}

// TypingActivity records local input activity. A no-op without a room.
func (c *Client) TypingActivity() {
	if c.Room() == "" {
		return
	}
	c.typing.Activity()
}

// StartCall initiates a call in the active room, with video per call type.
func (c *Client) StartCall(video bool) error {
	room := c.Room()
	if room == "" {
		return ErrNoActiveRoom
	}
	if err := c.engine.Start(room, video); err != nil {
		return c.mapCallError(err)
	}
	return nil
}

// Hangup tears the call session down. Idempotent.
func (c *Client) Hangup() { c.engine.Close() }

// ToggleMute flips local audio and reports the new muted state.
func (c *Client) ToggleMute() bool { return c.engine.ToggleMute() }

func (c *Client) handleEvent(event string, data json.RawMessage) {
	in, err := proto.Decode(proto.Envelope{Event: event, Data: data})
	if err != nil {
		c.log().Warn().Err(err).Str("event", event).Msg("malformed payload dropped")
		c.surface(newError(CodeTransport, "malformed %s payload: %v", event, err))
		return
	}
	c.dispatch(in)
}

func (c *Client) dispatch(in proto.Inbound) {
	switch in.Kind {
	case proto.InboundChatMessage:
		c.onChatMessage(in.Message)
	case proto.InboundLoadHistory:
		c.onHistory(in.History)
	case proto.InboundMessageDeleted:
		c.onDeleted(in.Deleted)
	case proto.InboundTyping:
		c.onTyping(in.Typing, true)
	case proto.InboundStopTyping:
		c.onTyping(in.Typing, false)
	case proto.InboundPresence:
		c.onPresence(in.Presence)
	case proto.InboundTranscript:
		c.onTranscript(in.Transcript)
	case proto.InboundPlayTTS:
		c.onPlayTTS(in.TTS)
	case proto.InboundSignal:
		c.onSignal(in.Signal)
	case proto.InboundHistoryCleared:
		c.onHistoryCleared(in.Room)
	}
}

func (c *Client) onChatMessage(msg proto.ChatMessageData) {
	c.mu.Lock()
	if msg.Room != c.sess.room || c.sess.room == "" {
		c.mu.Unlock()
		return
	}
	c.sess.append(msg)
	// A delivered message supersedes that peer's typing indicator.
	typingCleared := msg.Identity != c.identity && c.sess.typingBy == msg.Identity
	if typingCleared {
		c.sess.typingBy = ""
		c.stopRemoteTypingLocked()
	}
	c.mu.Unlock()

	if typingCleared && c.handlers.OnTypingChanged != nil {
		c.handlers.OnTypingChanged(false, msg.Identity)
	}
	if c.handlers.OnMessage != nil {
		c.handlers.OnMessage(msg)
	}
}

func (c *Client) onHistory(msgs []proto.ChatMessageData) {
	c.mu.Lock()
	if c.sess.room == "" || (len(msgs) > 0 && msgs[0].Room != c.sess.room) {
		c.mu.Unlock()
		return
	}
	c.sess.replaceHistory(msgs)
	snapshot := append([]proto.ChatMessageData(nil), c.sess.messages...)
	c.mu.Unlock()

	if c.handlers.OnHistory != nil {
		c.handlers.OnHistory(snapshot)
	}
}

func (c *Client) onDeleted(d proto.DeleteMessageData) {
	c.mu.Lock()
	removed := c.sess.room != "" && d.Room == c.sess.room && c.sess.removeByID(d.ID)
	c.mu.Unlock()

	if removed && c.handlers.OnMessageDeleted != nil {
		c.handlers.OnMessageDeleted(d.ID)
	}
}

func (c *Client) onTyping(d proto.TypingData, active bool) {
	if d.Identity == c.identity {
		return
	}
	c.mu.Lock()
	if c.sess.room == "" || d.Room != c.sess.room {
		c.mu.Unlock()
		return
	}
	if active {
		c.sess.typingBy = d.Identity
		if c.remoteTyping == nil {
			c.remoteTyping = time.AfterFunc(c.typingExpiry, c.expireRemoteTyping)
		} else {
			c.remoteTyping.Reset(c.typingExpiry)
		}
	} else {
		c.sess.typingBy = ""
		c.stopRemoteTypingLocked()
	}
	c.mu.Unlock()

	if c.handlers.OnTypingChanged != nil {
		c.handlers.OnTypingChanged(active, d.Identity)
	}
}

// expireRemoteTyping clears a stale peer-typing flag when no refresh arrived
// inside the expiry window.
func (c *Client) expireRemoteTyping() {
	c.mu.Lock()
	identity := c.sess.typingBy
	c.sess.typingBy = ""
	c.mu.Unlock()

	if identity != "" && c.handlers.OnTypingChanged != nil {
		c.handlers.OnTypingChanged(false, identity)
	}
}

// stopRemoteTypingLocked stops the expiry timer. Callers hold c.mu.
func (c *Client) stopRemoteTypingLocked() {
	if c.remoteTyping != nil {
		c.remoteTyping.Stop()
	}
}

func (c *Client) onPresence(members []string) {
	c.mu.Lock()
	c.sess.members = append([]string(nil), members...)
	c.mu.Unlock()

	if c.handlers.OnPresenceChanged != nil {
		c.handlers.OnPresenceChanged(members)
	}
}

func (c *Client) onTranscript(t proto.TranscriptData) {
	if t.Room != c.Room() {
		return
	}
	if c.handlers.OnTranscript != nil {
		c.handlers.OnTranscript(t)
	}
}

// onPlayTTS surfaces a peer's tts request as a synthetic echo message. It is
// never persisted, so it carries no relay-assigned id.
func (c *Client) onPlayTTS(d proto.TTSData) {
	c.mu.Lock()
	if c.sess.room == "" || d.Room != c.sess.room {
		c.mu.Unlock()
		return
	}
	msg := proto.ChatMessageData{
		Identity: d.Identity,
		Room:     d.Room,
		Kind:     proto.KindTTSEcho,
		Content:  d.Text,
	}
	c.sess.append(msg)
	c.mu.Unlock()

	if c.handlers.OnMessage != nil {
		c.handlers.OnMessage(msg)
	}
}

func (c *Client) onSignal(sig proto.SignalData) {
	if err := c.engine.HandleSignal(c.Room(), sig); err != nil {
		c.surface(c.mapCallError(err))
	}
}

func (c *Client) onHistoryCleared(room string) {
	c.mu.Lock()
	if c.sess.room == "" || room != c.sess.room {
		c.mu.Unlock()
		return
	}
	c.sess.messages = nil
	c.mu.Unlock()

	if c.handlers.OnHistory != nil {
		c.handlers.OnHistory(nil)
	}
}

func (c *Client) emitTyping(event string) {
	room := c.Room()
	if room == "" {
		return
	}
	if err := c.emit(event, proto.TypingData{Room: room, Identity: c.identity}); err != nil {
		c.log().Warn().Err(err).Str("event", event).Msg("typing emit failed")
	}
}

func (c *Client) emit(event string, payload any) error {
	if err := c.ch.Emit(event, payload); err != nil {
		return newError(CodeTransport, "emit %s: %v", event, err)
	}
	return nil
}

func (c *Client) mapCallError(err error) error {
	switch {
	case errors.Is(err, call.ErrMediaDenied):
		return newError(CodeMediaAccessDenied, "%v", err)
	case errors.Is(err, call.ErrMalformedSignal):
		return newError(CodeMalformedSignal, "%v", err)
	case errors.Is(err, call.ErrNoRoom):
		return ErrNoActiveRoom
	default:
		return err
	}
}

func (c *Client) surface(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *Client) log() *zerolog.Logger {
	if c.logger != nil {
		return c.logger
	}
	nop := zerolog.Nop()
	return &nop
}
