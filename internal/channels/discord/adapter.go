// Package discord adapts Enola to Discord: direct chat with the
// authorized user, voice-note transcription, presence rotation and the
// notification embeds pushed by the background jobs.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/normanking/enola/internal/channels"
	"github.com/normanking/enola/internal/logging"
	"github.com/normanking/enola/internal/voice"
)

const maxMessageLen = 2000

// activity is one entry of the rotating-presence file.
type activity struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

var fallbackActivities = []activity{
	{Type: "watching", Name: "le fichier JSON manquant..."},
	{Type: "playing", Name: "au mode sans échec"},
}

var activityTypes = map[string]discordgo.ActivityType{
	"playing":   discordgo.ActivityTypeGame,
	"watching":  discordgo.ActivityTypeWatching,
	"listening": discordgo.ActivityTypeListening,
	"competing": discordgo.ActivityTypeCompeting,
	"streaming": discordgo.ActivityTypeStreaming,
}

// NowPlayingFunc reports the current Spotify track for the presence.
type NowPlayingFunc func(ctx context.Context) (string, bool)

// Adapter implements channels.Channel over discordgo.
type Adapter struct {
	token          string
	authUserID     string
	homeChannelID  string
	activitiesFile string

	session     *discordgo.Session
	incoming    chan *channels.Message
	transcriber voice.Transcriber
	nowPlaying  NowPlayingFunc
	logger      *logging.Logger
	httpClient  *http.Client

	mu          sync.Mutex
	lastChannel string
	closed      bool
}

// New creates the adapter. transcriber and nowPlaying may be nil.
func New(token, authUserID, homeChannelID, activitiesFile string, transcriber voice.Transcriber, nowPlaying NowPlayingFunc, logger *logging.Logger) *Adapter {
	return &Adapter{
		token:          token,
		authUserID:     authUserID,
		homeChannelID:  homeChannelID,
		activitiesFile: activitiesFile,
		incoming:       make(chan *channels.Message, 100),
		transcriber:    transcriber,
		nowPlaying:     nowPlaying,
		logger:         logger,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) IsEnabled() bool { return a.token != "" }

func (a *Adapter) Start(ctx context.Context) error {
	if !a.IsEnabled() {
		return channels.ErrChannelDisabled
	}
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	a.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		a.onMessage(ctx, s, m)
	})

	if err := session.Open(); err != nil {
		return err
	}

	go a.presenceLoop(ctx)
	a.greet()

	go func() {
		<-ctx.Done()
		session.Close()
	}()
	return nil
}

func (a *Adapter) Stop() error {
	if a.session != nil {
		a.session.Close()
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.incoming)
	}
	a.mu.Unlock()
	return nil
}

// enqueue hands a message to the router, dropping it when the adapter
// already shut down. A gateway callback can still fire after Stop.
func (a *Adapter) enqueue(msg *channels.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.incoming <- msg
}

func (a *Adapter) Incoming() <-chan *channels.Message {
	return a.incoming
}

func (a *Adapter) onMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}
	if a.authUserID != "" && m.Author.ID != a.authUserID {
		return
	}

	a.mu.Lock()
	a.lastChannel = m.ChannelID
	a.mu.Unlock()

	content := m.Content
	isVoice := false
	if text, hadAudio, err := a.transcribeAttachments(ctx, m); hadAudio {
		if err != nil {
			_, _ = s.ChannelMessageSend(m.ChannelID, "⚠️ Je n'ai rien entendu.")
			return
		}
		// Echo what was understood so the user can catch a bad take.
		_, _ = s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("*(J'ai entendu : \"%s\")*", text))
		content = text
		isVoice = true
	}

	_ = s.ChannelTyping(m.ChannelID)

	a.enqueue(&channels.Message{
		ID:        m.ID,
		Channel:   "discord",
		UserID:    m.Author.ID,
		ChatID:    m.ChannelID,
		Content:   content,
		Voice:     isVoice,
		Timestamp: m.Timestamp,
	})
}

// transcribeAttachments turns the first audio attachment into text.
// hadAudio distinguishes a failed voice note from a plain text message;
// the former gets an explicit error reply instead of silence.
func (a *Adapter) transcribeAttachments(ctx context.Context, m *discordgo.MessageCreate) (text string, hadAudio bool, err error) {
	if a.transcriber == nil {
		return "", false, nil
	}
	for _, att := range m.Attachments {
		if !strings.Contains(att.ContentType, "audio") {
			continue
		}
		body, err := a.download(ctx, att.URL)
		if err != nil {
			a.logger.Error("voice download failed", "error", err)
			return "", true, err
		}
		text, err := a.transcriber.Transcribe(ctx, body, att.Filename)
		body.Close()
		if err != nil {
			a.logger.Error("transcription failed", "error", err)
			return "", true, err
		}
		a.logger.Info("voice note transcribed", "filename", att.Filename)
		return text, true, nil
	}
	return "", false, nil
}

func (a *Adapter) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("statut %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Send delivers a reply, splitting it under the Discord message limit.
func (a *Adapter) Send(chatID, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := a.session.ChannelMessageSend(chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage cuts on newlines where possible, hard-cutting runs that
// exceed the limit on their own.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// greet DMs the owner that the bot is up.
func (a *Adapter) greet() {
	if a.authUserID == "" {
		return
	}
	ch, err := a.session.UserChannelCreate(a.authUserID)
	if err != nil {
		return
	}
	_, _ = a.session.ChannelMessageSend(ch.ID, "Coucou\nEn ligne 🫡")
}

// presenceLoop rotates the bot status every 30 seconds: the current
// Spotify track when something plays, otherwise occasionally a random
// activity from the activities file.
func (a *Adapter) presenceLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.updatePresence(ctx)
		}
	}
}

func (a *Adapter) updatePresence(ctx context.Context) {
	if a.nowPlaying != nil {
		if track, ok := a.nowPlaying(ctx); ok {
			a.setActivity(discordgo.ActivityTypeListening, track)
			return
		}
	}
	// Without music, only switch one time in three so the status
	// does not flicker.
	if rand.Intn(3) != 0 {
		return
	}
	acts := a.loadActivities()
	act := acts[rand.Intn(len(acts))]
	kind, ok := activityTypes[act.Type]
	if !ok {
		kind = discordgo.ActivityTypeGame
	}
	a.setActivity(kind, act.Name)
}

func (a *Adapter) setActivity(kind discordgo.ActivityType, name string) {
	err := a.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{{Type: kind, Name: name}},
	})
	if err != nil {
		a.logger.Debug("presence update failed", "error", err)
	}
}

func (a *Adapter) loadActivities() []activity {
	data, err := os.ReadFile(a.activitiesFile)
	if err != nil {
		return fallbackActivities
	}
	var acts []activity
	if err := json.Unmarshal(data, &acts); err != nil || len(acts) == 0 {
		return fallbackActivities
	}
	return acts
}

// Notify renders a notification as an embed. DM notifications go
// straight to the owner; the rest land in the last channel the owner
// talked in, falling back to a DM.
func (a *Adapter) Notify(n channels.Notification) error {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
		URL:         n.URL,
		Color:       n.Color,
	}
	if n.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: n.ImageURL}
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: f[0], Value: f[1],
		})
	}

	target := a.notifyTarget(n.DM)
	if target == "" {
		if a.authUserID == "" {
			return fmt.Errorf("aucune cible de notification")
		}
		ch, err := a.session.UserChannelCreate(a.authUserID)
		if err != nil {
			return err
		}
		target = ch.ID
	}
	_, err := a.session.ChannelMessageSendEmbed(target, embed)
	return err
}

// notifyTarget picks the channel a notification lands in: the
// configured home channel first, then the last channel the owner
// talked in. Empty means deliver as a DM.
func (a *Adapter) notifyTarget(dm bool) string {
	if dm {
		return ""
	}
	if a.homeChannelID != "" {
		return a.homeChannelID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastChannel
}
