package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/meetwire/meetwire/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	identity := flag.String("identity", "smoke-tester", "identity to connect with")
	room := flag.String("room", "alice_bob", "room id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?identity="+*identity, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	emit := func(event string, payload any) error {
		env, err := proto.NewEnvelope(event, payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", event, err)
		}
		if err := wsjson.Write(ctx, conn, env); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
		return nil
	}

	if err := emit(proto.EventJoin, proto.JoinData{Identity: *identity, Room: *room}); err != nil {
		return err
	}
	if err := emit(proto.EventSendMessage, proto.SendData{
		Identity: *identity, Room: *room, Content: *text,
	}); err != nil {
		return err
	}

	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received event=%s\n", env.Event)

		switch env.Event {
		case proto.EventLoadHistory:
			var history []proto.ChatMessageData
			if err := json.Unmarshal(env.Data, &history); err != nil {
				return fmt.Errorf("unmarshal history: %w", err)
			}
			fmt.Printf("History: %d messages\n", len(history))
		case proto.EventChatMessage:
			var msg proto.ChatMessageData
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				fmt.Printf("Raw data: %s\n", string(env.Data))
				return fmt.Errorf("unmarshal chat_message: %w", err)
			}
			fmt.Printf("ChatMessage: id=%d room=%s identity=%s content=%q at=%s\n",
				msg.ID, msg.Room, msg.Identity, msg.Content, msg.TimestampDisplay)
			return nil
		case proto.EventUpdatePresence:
			var members []string
			if err := json.Unmarshal(env.Data, &members); err == nil {
				fmt.Printf("Online: %v\n", members)
			}
		default:
			// keep looping for the echo
		}
	}
}
