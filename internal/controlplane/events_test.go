package controlplane

import (
	"testing"
	"time"

	"hieasy-dvr-bridge/internal/recorder"
)

func TestHubBroadcastFansOutToAllClients(t *testing.T) {
	h := NewHub()
	a := &hubClient{send: make(chan StatusEvent, 4)}
	b := &hubClient{send: make(chan StatusEvent, 4)}
	h.add(a)
	h.add(b)

	h.Broadcast(StatusEvent{Type: "armed", Timestamp: time.Now()})

	for _, c := range []*hubClient{a, b} {
		select {
		case e := <-c.send:
			if e.Type != "armed" {
				t.Fatalf("unexpected event type %q", e.Type)
			}
		default:
			t.Fatal("expected event to be delivered")
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	slow := &hubClient{send: make(chan StatusEvent, 1)}
	h.add(slow)

	h.Broadcast(StatusEvent{Type: "first"})
	h.Broadcast(StatusEvent{Type: "second"}) // buffer full, should drop the client

	h.mu.Lock()
	_, stillConnected := h.clients[slow]
	h.mu.Unlock()
	if stillConnected {
		t.Fatal("expected slow client to be removed")
	}

	// The event buffered before the drop is still readable; the channel
	// reports closed only after it has been drained.
	if e, ok := <-slow.send; !ok || e.Type != "first" {
		t.Fatalf("expected buffered first event before close, got %+v ok=%v", e, ok)
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("expected slow client's channel to be closed")
	}
}

func TestHubPublishTranslatesRecorderEvent(t *testing.T) {
	h := NewHub()
	c := &hubClient{send: make(chan StatusEvent, 1)}
	h.add(c)

	h.Publish(recorder.Event{Kind: recorder.EventDiskFull, Channel: 2, Message: "disk full"})

	select {
	case e := <-c.send:
		if e.Type != string(recorder.EventDiskFull) || e.Channel != 2 || e.Message != "disk full" {
			t.Fatalf("unexpected translated event: %+v", e)
		}
	default:
		t.Fatal("expected translated event to be delivered")
	}
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	h := NewHub()
	c := &hubClient{send: make(chan StatusEvent, 1)}
	h.add(c)
	h.remove(c)
	h.remove(c) // must not double-close
}
