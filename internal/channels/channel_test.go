package channels

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/normanking/enola/internal/logging"
)

// fakeChannel is an in-memory adapter for router tests.
type fakeChannel struct {
	name    string
	enabled bool
	started bool
	in      chan *Message

	mu   sync.Mutex
	sent []string
}

func newFakeChannel(name string, enabled bool) *fakeChannel {
	return &fakeChannel{name: name, enabled: enabled, in: make(chan *Message, 8)}
}

func (c *fakeChannel) Name() string      { return c.name }
func (c *fakeChannel) IsEnabled() bool   { return c.enabled }
func (c *fakeChannel) Stop() error       { close(c.in); return nil }
func (c *fakeChannel) Incoming() <-chan *Message { return c.in }

func (c *fakeChannel) Start(context.Context) error {
	c.started = true
	return nil
}

func (c *fakeChannel) Send(chatID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, chatID+"|"+text)
	return nil
}

func (c *fakeChannel) sentMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRouterRoutesReplies(t *testing.T) {
	ch := newFakeChannel("discord", true)
	handler := func(_ context.Context, msg *Message) string {
		return "echo: " + msg.Content
	}
	r := NewRouter(handler, logging.New(), ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	ch.in <- &Message{ChatID: "42", Content: "salut"}
	waitFor(t, func() bool { return len(ch.sentMessages()) == 1 })
	if got := ch.sentMessages()[0]; got != "42|echo: salut" {
		t.Fatalf("unexpected send: %q", got)
	}
	r.Stop()
}

func TestRouterSwallowsEmptyReplies(t *testing.T) {
	ch := newFakeChannel("discord", true)
	var handled sync.WaitGroup
	handled.Add(1)
	handler := func(_ context.Context, _ *Message) string {
		defer handled.Done()
		return ""
	}
	r := NewRouter(handler, logging.New(), ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	ch.in <- &Message{ChatID: "42", Content: "..."}
	handled.Wait()
	if got := ch.sentMessages(); len(got) != 0 {
		t.Fatalf("empty reply must not be sent, got %v", got)
	}
	r.Stop()
}

func TestRouterSkipsDisabledChannels(t *testing.T) {
	enabled := newFakeChannel("discord", true)
	disabled := newFakeChannel("telegram", false)
	r := NewRouter(func(context.Context, *Message) string { return "ok" }, logging.New(), enabled, disabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if disabled.started {
		t.Error("disabled channel must not start")
	}
	if !enabled.started {
		t.Error("enabled channel must start")
	}
	r.Stop()
}

func TestRouterFailsWithNoChannel(t *testing.T) {
	disabled := newFakeChannel("telegram", false)
	r := NewRouter(func(context.Context, *Message) string { return "" }, logging.New(), disabled)

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error when nothing starts")
	}
}

func TestRouterHandlesConcurrentMessages(t *testing.T) {
	ch := newFakeChannel("discord", true)
	handler := func(_ context.Context, msg *Message) string {
		return strings.ToUpper(msg.Content)
	}
	r := NewRouter(handler, logging.New(), ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		ch.in <- &Message{ChatID: "42", Content: "msg"}
	}
	waitFor(t, func() bool { return len(ch.sentMessages()) == 5 })
	r.Stop()
}
