package proto

import "encoding/json"

// Envelope wraps every named event exchanged with the relay.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope for the given event name.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// Event names. Keep values stable: they are the wire contract with the relay.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventSendImage      = "send_image"
	EventSendFile       = "send_file"
	EventChatMessage    = "chat_message"
	EventLoadHistory    = "load_history"
	EventDeleteMessage  = "delete_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventUpdatePresence = "update_presence"
	EventSendTranscript = "send_transcript"
	EventSendTTS        = "send_tts"
	EventPlayTTS        = "play_tts"
	EventSignal         = "signal"
	EventClearHistory   = "clear_history"
	EventHistoryCleared = "history_cleared"
)

// Message kinds carried in chat_message payloads.
const (
	KindText    = "text"
	KindImage   = "image"
	KindFile    = "file"
	KindTTSEcho = "tts-echo"
)

// Signal types carried in signal payloads.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// JoinData subscribes the sender to a room's events.
type JoinData struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// SendData submits a content item (send_message, send_image, send_file).
// OriginalName is only set for files.
type SendData struct {
	Identity     string `json:"identity"`
	Room         string `json:"room"`
	Content      string `json:"content"`
	OriginalName string `json:"originalName,omitempty"`
}

// ChatMessageData is the authoritative delivery of one message, fanned out
// to every room member including the sender.
type ChatMessageData struct {
	ID               int64  `json:"id"`
	Identity         string `json:"identity"`
	Room             string `json:"room"`
	Kind             string `json:"kind"`
	Content          string `json:"content"`
	OriginalName     string `json:"originalName,omitempty"`
	TimestampDisplay string `json:"timestampDisplay"`
}

// DeleteMessageData requests (client) or confirms (relay) a deletion by id.
type DeleteMessageData struct {
	ID       int64  `json:"id"`
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// TypingData marks input activity in a room. stop_typing may omit identity.
type TypingData struct {
	Room     string `json:"room"`
	Identity string `json:"identity,omitempty"`
}

// TranscriptData is a streaming speech transcript, forwarded as-is.
type TranscriptData struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Text     string `json:"text"`
	Final    bool   `json:"final"`
}

// TTSData requests (send_tts) or echoes (play_tts) synthesized speech.
type TTSData struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

// SignalData carries call negotiation payloads. SDP and Candidate are opaque
// to everything except the call engine; the relay forwards them untouched.
type SignalData struct {
	Room      string          `json:"room"`
	Type      string          `json:"type"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// RoomData names a room with no further payload (clear_history, history_cleared).
type RoomData struct {
	Room string `json:"room"`
}
