// Package telegram adapts Enola to Telegram long polling.
package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/normanking/enola/internal/channels"
	"github.com/normanking/enola/internal/logging"
)

const maxMessageLen = 4096

// Adapter implements channels.Channel over the Telegram bot API.
type Adapter struct {
	token      string
	authChatID int64
	bot        *tgbotapi.BotAPI
	incoming   chan *channels.Message
	logger     *logging.Logger

	mu     sync.Mutex
	closed bool
}

// New creates the adapter. authChatID 0 accepts every chat.
func New(token string, authChatID int64, logger *logging.Logger) *Adapter {
	return &Adapter{
		token:      token,
		authChatID: authChatID,
		incoming:   make(chan *channels.Message, 100),
		logger:     logger,
	}
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) IsEnabled() bool { return a.token != "" }

func (a *Adapter) Start(ctx context.Context) error {
	if !a.IsEnabled() {
		return channels.ErrChannelDisabled
	}
	bot, err := tgbotapi.NewBotAPI(a.token)
	if err != nil {
		return err
	}
	a.bot = bot
	a.logger.Info("telegram connected", "username", bot.Self.UserName)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := bot.GetUpdatesChan(cfg)

	go func() {
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				a.onUpdate(update)
			}
		}
	}()
	return nil
}

func (a *Adapter) onUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message
	if a.authChatID != 0 && msg.Chat.ID != a.authChatID {
		return
	}

	a.enqueue(&channels.Message{
		ID:        strconv.Itoa(msg.MessageID),
		Channel:   "telegram",
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Content:   msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	})
}

// enqueue hands a message to the router, dropping it when the adapter
// already shut down. The update pump can race a concurrent Stop.
func (a *Adapter) enqueue(msg *channels.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.incoming <- msg
}

func (a *Adapter) Stop() error {
	if a.bot != nil {
		a.bot.StopReceivingUpdates()
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.incoming)
	}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Incoming() <-chan *channels.Message {
	return a.incoming
}

// Send delivers a reply, splitting it under the Telegram message limit.
func (a *Adapter) Send(chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxMessageLen {
			chunk = chunk[:maxMessageLen]
		}
		text = text[len(chunk):]
		if _, err := a.bot.Send(tgbotapi.NewMessage(id, chunk)); err != nil {
			return err
		}
	}
	return nil
}
