// Command enola runs the home assistant: chat channels, the HTTP front
// door and the background jobs, all over one brain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/normanking/enola/internal/api"
	"github.com/normanking/enola/internal/brain"
	"github.com/normanking/enola/internal/channels"
	"github.com/normanking/enola/internal/channels/discord"
	"github.com/normanking/enola/internal/channels/telegram"
	"github.com/normanking/enola/internal/config"
	"github.com/normanking/enola/internal/logging"
	"github.com/normanking/enola/internal/scheduler"
	"github.com/normanking/enola/internal/scraper"
	"github.com/normanking/enola/internal/store"
	"github.com/normanking/enola/internal/tools"
	"github.com/normanking/enola/internal/voice"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "enola: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	config.LoadEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewWithConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logger.Close()
	logger.Info("enola starting", "config", configPath)

	if cfg.Model.APIKey == "" {
		return fmt.Errorf("model api key missing (set OPENAI_API_KEY)")
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	toolset, err := tools.NewSet(cfg, st)
	if err != nil {
		return err
	}

	var modelOpts []brain.OpenAIOption
	modelOpts = append(modelOpts, brain.WithTemperature(cfg.Model.Temperature))
	if cfg.Model.BaseURL != "" {
		modelOpts = append(modelOpts, brain.WithBaseURL(cfg.Model.BaseURL))
	}
	model := brain.NewOpenAIModel(cfg.Model.APIKey, cfg.Model.Name, modelOpts...)

	orch := brain.New(brain.Config{
		Model:    model,
		Registry: toolset.Registry,
		Logger:   logger.Component("brain"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var transcriber voice.Transcriber
	var speaker voice.Speaker
	if cfg.Voice.Enabled {
		transcriber = voice.NewWhisper(cfg.Model.APIKey)
		tts := voice.NewTTS(cfg.Voice.TTSURL)
		if tts.Enabled() {
			speaker = tts
		}
	}

	discordToken := ""
	if cfg.Channels.Discord.Enabled {
		discordToken = cfg.Channels.Discord.Token
	}
	telegramToken := ""
	if cfg.Channels.Telegram.Enabled {
		telegramToken = cfg.Channels.Telegram.Token
	}

	discordAdapter := discord.New(
		discordToken,
		cfg.Channels.Discord.AuthUserID,
		cfg.Channels.Discord.HomeChannelID,
		cfg.Channels.Discord.ActivitiesFile,
		transcriber,
		toolset.Spotify.NowPlaying,
		logger.Component("discord"),
	)
	telegramAdapter := telegram.New(
		telegramToken,
		cfg.Channels.Telegram.AuthChatID,
		logger.Component("telegram"),
	)

	handler := func(ctx context.Context, msg *channels.Message) string {
		return orch.Process(ctx, msg.Channel+":"+msg.UserID, msg.Content)
	}
	router := channels.NewRouter(handler, logger.Component("router"), discordAdapter, telegramAdapter)
	routerErr := router.Start(ctx)
	if routerErr != nil {
		logger.Warn("no chat channel running", "error", routerErr)
	}

	var notifier channels.Notifier
	if discordAdapter.IsEnabled() {
		notifier = discordAdapter
	}
	sched := scheduler.New(cfg.Jobs, toolset.AniList, scraper.NewCodes(st),
		toolset.Spotify, st, cfg.Spotify.Device, notifier, logger.Component("jobs"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	if cfg.Server.Enabled {
		server := api.New(cfg.Server.Host, cfg.Server.Port, orch, speaker, logger.Component("api"))
		if err := server.Start(ctx); err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	router.Stop()
	sched.Stop()
	return nil
}
