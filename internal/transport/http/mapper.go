package http

import (
	"encoding/json"

	"github.com/meetwire/meetwire/internal/proto"
	"github.com/meetwire/meetwire/internal/relay"
)

// envelopeToCommand maps one inbound envelope to a hub command. A malformed
// payload is an error; an unknown event name maps to nil, a no-op.
func envelopeToCommand(env proto.Envelope) (*relay.Command, error) {
	switch env.Event {
	case proto.EventJoin:
		var join proto.JoinData
		if err := json.Unmarshal(env.Data, &join); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandJoin, Join: join}, nil
	case proto.EventSendMessage, proto.EventSendImage, proto.EventSendFile:
		var send proto.SendData
		if err := json.Unmarshal(env.Data, &send); err != nil {
			return nil, err
		}
		return &relay.Command{
			Kind:     relay.CommandSend,
			SendKind: sendKind(env.Event),
			Send:     send,
		}, nil
	case proto.EventDeleteMessage:
		var del proto.DeleteMessageData
		if err := json.Unmarshal(env.Data, &del); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandDelete, Delete: del}, nil
	case proto.EventTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(env.Data, &typing); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandTyping, Typing: typing}, nil
	case proto.EventStopTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(env.Data, &typing); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandStopTyping, Typing: typing}, nil
	case proto.EventSendTranscript:
		var trans proto.TranscriptData
		if err := json.Unmarshal(env.Data, &trans); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandTranscript, Trans: trans}, nil
	case proto.EventSendTTS:
		var tts proto.TTSData
		if err := json.Unmarshal(env.Data, &tts); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandTTS, TTS: tts}, nil
	case proto.EventSignal:
		var sig proto.SignalData
		if err := json.Unmarshal(env.Data, &sig); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandSignal, Signal: sig}, nil
	case proto.EventClearHistory:
		var room proto.RoomData
		if err := json.Unmarshal(env.Data, &room); err != nil {
			return nil, err
		}
		return &relay.Command{Kind: relay.CommandClearHistory, Room: room.Room}, nil
	default:
		// Forward compatible: unrecognized events are ignored.
		return nil, nil
	}
}

func sendKind(event string) string {
	switch event {
	case proto.EventSendImage:
		return proto.KindImage
	case proto.EventSendFile:
		return proto.KindFile
	default:
		return proto.KindText
	}
}
