package telegram

import (
	"testing"
	"time"

	"github.com/normanking/enola/internal/channels"
	"github.com/normanking/enola/internal/logging"
)

func TestEnqueueAfterStopIsDropped(t *testing.T) {
	a := New("", 0, logging.New())
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	// A racing update pump must not panic on the closed channel.
	a.enqueue(&channels.Message{ChatID: "42", Content: "trop tard"})

	select {
	case msg, ok := <-a.Incoming():
		if ok {
			t.Fatalf("message delivered after shutdown: %v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("incoming channel not closed")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	a := New("", 0, logging.New())
	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
}
