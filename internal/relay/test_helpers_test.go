package relay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/meetwire/meetwire/internal/proto"
)

func mustEvent(t *testing.T, ch <-chan proto.Envelope, event string) proto.Envelope {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case env := <-ch:
			if env.Event == event {
				return env
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event %q not received", event)
	return proto.Envelope{}
}

func noEvent(t *testing.T, ch <-chan proto.Envelope, event string, within time.Duration) {
	t.Helper()

	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		select {
		case env := <-ch:
			if env.Event == event {
				t.Fatalf("unexpected event %q: %s", event, string(env.Data))
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func decodePayload[T any](t *testing.T, env proto.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Event, err)
	}
	return v
}
