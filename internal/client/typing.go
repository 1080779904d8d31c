package client

import (
	"sync"
	"time"
)

// typingCoordinator tracks local input bursts. Every activity tick re-emits
// typing so the peer can refresh its staleness window, while a single timer
// backs the idle deadline and fires one stop_typing per burst; new activity
// restarts it, never stacks a second one.
type typingCoordinator struct {
	idle    time.Duration
	onStart func()
	onStop  func()

	mu     sync.Mutex
	timer  *time.Timer
	active bool
}

func newTypingCoordinator(idle time.Duration, onStart, onStop func()) *typingCoordinator {
	if idle <= 0 {
		idle = time.Second
	}
	return &typingCoordinator{idle: idle, onStart: onStart, onStop: onStop}
}

// Activity records one keystroke: it fires onStart and pushes the idle
// deadline out.
func (t *typingCoordinator) Activity() {
	t.mu.Lock()
	t.active = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.idle, t.expire)
	} else {
		t.timer.Reset(t.idle)
	}
	t.mu.Unlock()

	t.onStart()
}

func (t *typingCoordinator) expire() {
	t.mu.Lock()
	fire := t.active
	t.active = false
	t.mu.Unlock()

	if fire {
		t.onStop()
	}
}

// Flush ends the burst early, firing onStop if one was in flight. Used when
// a message is sent or the room is left.
func (t *typingCoordinator) Flush() {
	t.mu.Lock()
	fire := t.active
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	if fire {
		t.onStop()
	}
}

// Cancel drops the burst without firing onStop. Used on disconnect, where
// there is no transport to emit on.
func (t *typingCoordinator) Cancel() {
	t.mu.Lock()
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
}

// Active reports whether a burst is in flight.
func (t *typingCoordinator) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
