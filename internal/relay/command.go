package relay

import "github.com/meetwire/meetwire/internal/proto"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin subscribes the client to a room and replays its history.
	CommandJoin CommandKind = iota
	// CommandSend persists a content item and fans it out to the room.
	CommandSend
	// CommandDelete removes a message after verifying the sender owns it.
	CommandDelete
	// CommandTyping forwards a typing indicator to the rest of the room.
	CommandTyping
	// CommandStopTyping clears a typing indicator for the rest of the room.
	CommandStopTyping
	// CommandTranscript streams a speech transcript to the rest of the room.
	CommandTranscript
	// CommandTTS asks the rest of the room to synthesize speech.
	CommandTTS
	// CommandSignal forwards an opaque call negotiation payload.
	CommandSignal
	// CommandClearHistory wipes the room's stored messages.
	CommandClearHistory
)

// Command represents an action requested by a client. Only the field
// matching Kind carries data; SendKind selects text/image/file for
// CommandSend.
type Command struct {
	Kind     CommandKind
	Join     proto.JoinData
	Send     proto.SendData
	SendKind string
	Delete   proto.DeleteMessageData
	Typing   proto.TypingData
	Trans    proto.TranscriptData
	TTS      proto.TTSData
	Signal   proto.SignalData
	Room     string
}
