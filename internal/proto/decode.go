package proto

import "encoding/json"

// InboundKind tags the decoded form of a relay-to-client event.
type InboundKind int

const (
	// InboundUnknown marks an unrecognized event. It is not an error:
	// unknown events are forward-compatible no-ops.
	InboundUnknown InboundKind = iota
	InboundChatMessage
	InboundLoadHistory
	InboundMessageDeleted
	InboundTyping
	InboundStopTyping
	InboundPresence
	InboundTranscript
	InboundPlayTTS
	InboundSignal
	InboundHistoryCleared
)

// Inbound is the tagged union of all relay-to-client events. Only the field
// matching Kind is populated.
type Inbound struct {
	Kind       InboundKind
	Message    ChatMessageData
	History    []ChatMessageData
	Deleted    DeleteMessageData
	Typing     TypingData
	Presence   []string
	Transcript TranscriptData
	TTS        TTSData
	Signal     SignalData
	Room       string
}

// Decode maps an envelope to its typed inbound case. A malformed payload is
// an error; an unrecognized event name is not.
func Decode(env Envelope) (Inbound, error) {
	switch env.Event {
	case EventChatMessage:
		var d ChatMessageData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundChatMessage, Message: d}, nil
	case EventLoadHistory:
		var d []ChatMessageData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundLoadHistory, History: d}, nil
	case EventDeleteMessage:
		var d DeleteMessageData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundMessageDeleted, Deleted: d}, nil
	case EventTyping:
		var d TypingData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundTyping, Typing: d}, nil
	case EventStopTyping:
		var d TypingData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundStopTyping, Typing: d}, nil
	case EventUpdatePresence:
		var d []string
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundPresence, Presence: d}, nil
	case EventSendTranscript:
		var d TranscriptData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundTranscript, Transcript: d}, nil
	case EventPlayTTS:
		var d TTSData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundPlayTTS, TTS: d}, nil
	case EventSignal:
		var d SignalData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundSignal, Signal: d}, nil
	case EventHistoryCleared:
		var d RoomData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: InboundHistoryCleared, Room: d.Room}, nil
	default:
		return Inbound{Kind: InboundUnknown}, nil
	}
}
