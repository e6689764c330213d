// Package channels provides the messaging channel abstraction: a
// trimmed interface every chat adapter implements, and the router that
// pumps inbound messages through the brain.
package channels

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/normanking/enola/internal/logging"
)

// ErrChannelDisabled is returned when starting a channel without
// credentials.
var ErrChannelDisabled = errors.New("channel is disabled")

// Message is an inbound user message, normalized across adapters.
type Message struct {
	ID      string
	Channel string
	// UserID is the conversation identity.
	UserID string
	// ChatID is where the reply goes.
	ChatID    string
	Content   string
	Voice     bool
	Timestamp time.Time
}

// Channel is the interface all messaging adapters implement.
type Channel interface {
	Name() string
	IsEnabled() bool
	Start(ctx context.Context) error
	Stop() error
	Incoming() <-chan *Message
	Send(chatID, text string) error
}

// Notification is a rich out-of-band message pushed by the background
// jobs, rendered by the adapter however its platform allows.
type Notification struct {
	Title    string
	Body     string
	URL      string
	ImageURL string
	Fields   [][2]string
	Color    int
	// DM forces delivery to the owner directly instead of the last
	// active channel.
	DM bool
}

// Notifier delivers out-of-band notifications.
type Notifier interface {
	Notify(n Notification) error
}

// Handler produces the reply for one inbound message.
type Handler func(ctx context.Context, msg *Message) string

// Router fans inbound messages from every started channel into the
// handler and ships the replies back.
type Router struct {
	channels []Channel
	handler  Handler
	logger   *logging.Logger
	wg       sync.WaitGroup
}

// NewRouter creates a router over the given channels.
func NewRouter(handler Handler, logger *logging.Logger, chans ...Channel) *Router {
	return &Router{channels: chans, handler: handler, logger: logger}
}

// Start opens every enabled channel and begins routing. Disabled
// channels are skipped; a channel that fails to start is logged and
// skipped so the others still run.
func (r *Router) Start(ctx context.Context) error {
	started := 0
	for _, ch := range r.channels {
		if !ch.IsEnabled() {
			r.logger.Info("channel disabled", "channel", ch.Name())
			continue
		}
		if err := ch.Start(ctx); err != nil {
			r.logger.Error("channel start failed", "channel", ch.Name(), "error", err)
			continue
		}
		r.logger.Info("channel started", "channel", ch.Name())
		started++

		r.wg.Add(1)
		go r.pump(ctx, ch)
	}
	if started == 0 {
		return errors.New("no channel started")
	}
	return nil
}

func (r *Router) pump(ctx context.Context, ch Channel) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Incoming():
			if !ok {
				return
			}
			// Per-conversation ordering is enforced downstream, so
			// each message can run on its own goroutine.
			go func(msg *Message) {
				reply := r.handler(ctx, msg)
				if reply == "" {
					return
				}
				if err := ch.Send(msg.ChatID, reply); err != nil {
					r.logger.Error("send failed", "channel", ch.Name(), "error", err)
				}
			}(msg)
		}
	}
}

// Stop closes every channel and waits for the pumps to drain.
func (r *Router) Stop() {
	for _, ch := range r.channels {
		if ch.IsEnabled() {
			if err := ch.Stop(); err != nil {
				r.logger.Error("channel stop failed", "channel", ch.Name(), "error", err)
			}
		}
	}
	r.wg.Wait()
}
