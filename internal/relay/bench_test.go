package relay

import (
	"context"
	"fmt"
	"testing"

	"github.com/meetwire/meetwire/internal/proto"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, nil)
	go hub.Run(ctx)

	sender := NewClient("sender", "sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandJoin, Join: proto.JoinData{Identity: "sender", Room: "bench"}}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i), fmt.Sprintf("client%d", i))
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoin, Join: proto.JoinData{Identity: c.Identity, Room: "bench"}}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	go func() {
		for range sender.Events {
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:     CommandSend,
			SendKind: proto.KindText,
			Send:     proto.SendData{Identity: "sender", Room: "bench", Content: "payload"},
		}
		for {
			env := <-target.Events
			if env.Event == proto.EventChatMessage {
				break
			}
		}
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
