// Package scheduler runs Enola's background jobs on cron schedules:
// new-episode checks, promo-code scraping, wake-up alarms and the daily
// alarm recap.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/normanking/enola/internal/channels"
	"github.com/normanking/enola/internal/config"
	"github.com/normanking/enola/internal/logging"
	"github.com/normanking/enola/internal/scraper"
	"github.com/normanking/enola/internal/store"
	"github.com/normanking/enola/internal/tools"
)

const (
	colorArknights = 0xE67E22
	colorStrinova  = 0x3498DB
	colorEpisode   = 0x7F8C8D
	colorRecap     = 0xF1C40F
)

// frenchDays maps Go weekdays to the day tokens alarms store.
var frenchDays = map[time.Weekday]string{
	time.Monday:    "lundi",
	time.Tuesday:   "mardi",
	time.Wednesday: "mercredi",
	time.Thursday:  "jeudi",
	time.Friday:    "vendredi",
	time.Saturday:  "samedi",
	time.Sunday:    "dimanche",
}

// Scheduler owns the cron runner and the job dependencies.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.JobsConfig
	anilist  *tools.AniList
	codes    *scraper.Codes
	spotify  *tools.Spotify
	store    *store.Store
	device   string
	notifier channels.Notifier
	logger   *logging.Logger
	location *time.Location
	now      func() time.Time

	mu        sync.Mutex
	nextRecap time.Time
}

// New wires the jobs. notifier may be nil, which silences notifications
// but keeps state (dedup, alarms) moving.
func New(cfg config.JobsConfig, anilist *tools.AniList, codes *scraper.Codes,
	spotify *tools.Spotify, st *store.Store, device string,
	notifier channels.Notifier, logger *logging.Logger) *Scheduler {

	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg,
		anilist:  anilist,
		codes:    codes,
		spotify:  spotify,
		store:    st,
		device:   device,
		notifier: notifier,
		logger:   logger,
		location: loc,
		now:      time.Now,
	}
}

// Start registers the jobs and launches the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("background jobs disabled")
		return nil
	}

	jobs := []struct {
		spec string
		name string
		fn   func(context.Context)
	}{
		{orDefault(s.cfg.AnimeSpec, "@every 5m"), "animes", s.checkEpisodes},
		{orDefault(s.cfg.CodesSpec, "@every 4h"), "codes", s.checkCodes},
		{orDefault(s.cfg.AlarmsSpec, "@every 1m"), "alarmes", s.checkAlarms},
	}
	if !s.cfg.RecapDisabled {
		jobs = append(jobs, struct {
			spec string
			name string
			fn   func(context.Context)
		}{"@every 1m", "recap", s.checkRecap})
		s.scheduleNextRecap(s.now().In(s.location))
	}

	for _, j := range jobs {
		job := j
		if _, err := s.cron.AddFunc(job.spec, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			job.fn(jobCtx)
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
		s.logger.Info("job scheduled", "job", job.name, "spec", job.spec)
	}

	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func orDefault(spec, fallback string) string {
	if spec == "" {
		return fallback
	}
	return spec
}

// checkEpisodes announces freshly aired episodes of watched animes.
func (s *Scheduler) checkEpisodes(ctx context.Context) {
	releases, err := s.anilist.CheckNewEpisodes(ctx)
	if err != nil {
		s.logger.Error("episode check failed", "error", err)
		return
	}
	for _, rel := range releases {
		s.logger.Info("new episode", "title", rel.Title, "episode", rel.Episode)
		if s.notifier == nil {
			continue
		}
		n := channels.Notification{
			Title:    fmt.Sprintf("Nouvel épisode: %s", rel.Title),
			Body:     fmt.Sprintf("Épisode %d détecté.", rel.Episode),
			URL:      rel.AniListURL,
			ImageURL: rel.ImageURL,
			Color:    colorEpisode,
			Fields:   [][2]string{{"Crunchyroll", rel.CrunchyURL}},
		}
		if rel.AniListURL != "" {
			n.Fields = append(n.Fields, [2]string{"AniList", rel.AniListURL})
		}
		if err := s.notifier.Notify(n); err != nil {
			s.logger.Error("episode notify failed", "error", err)
		}
	}
}

// checkCodes DMs newly scraped promo codes.
func (s *Scheduler) checkCodes(ctx context.Context) {
	fresh, err := s.codes.CheckNew(ctx)
	if err != nil {
		s.logger.Error("code check failed", "error", err)
	}
	for _, code := range fresh {
		s.logger.Info("new code", "game", code.Game, "code", code.Code)
		if s.notifier == nil {
			continue
		}
		color := colorArknights
		if strings.Contains(code.Game, "Strinova") {
			color = colorStrinova
		}
		err := s.notifier.Notify(channels.Notification{
			Title: fmt.Sprintf("🎁 Nouveau code %s !", code.Game),
			Body:  fmt.Sprintf("Code : **%s**\n\n_Pense à l'activer en jeu !_ 🎮", code.Code),
			Color: color,
			DM:    true,
		})
		if err != nil {
			s.logger.Error("code notify failed", "error", err)
		}
	}
}

// checkAlarms rings due alarms through Spotify on the house speaker.
func (s *Scheduler) checkAlarms(ctx context.Context) {
	now := s.now().In(s.location)
	hhmm := now.Format("15:04")
	today := now.Format("2006-01-02")
	day := frenchDays[now.Weekday()]

	alarms, err := s.store.ActiveAlarms(ctx)
	if err != nil {
		s.logger.Error("alarm check failed", "error", err)
		return
	}
	for _, alarm := range alarms {
		if alarm.Time != hhmm || alarm.LastFired == today {
			continue
		}
		if alarm.Days != "" && !strings.Contains(","+alarm.Days+",", ","+day+",") {
			continue
		}
		s.logger.Info("alarm ringing", "id", alarm.ID, "playlist", alarm.Playlist)
		if err := s.spotify.PlayPlaylist(ctx, alarm.Playlist, s.device); err != nil {
			s.logger.Error("alarm playback failed", "id", alarm.ID, "error", err)
		}
		if err := s.store.MarkAlarmFired(ctx, alarm.ID, today); err != nil {
			s.logger.Error("alarm update failed", "id", alarm.ID, "error", err)
		}
	}
}

// checkRecap sends the daily alarm summary once the randomly chosen
// hour has passed, then rolls the dice for tomorrow.
func (s *Scheduler) checkRecap(ctx context.Context) {
	now := s.now().In(s.location)

	s.mu.Lock()
	due := !s.nextRecap.IsZero() && !now.Before(s.nextRecap)
	s.mu.Unlock()
	if !due {
		return
	}

	defer s.scheduleNextRecap(now.AddDate(0, 0, 1))

	alarms, err := s.store.ActiveAlarms(ctx)
	if err != nil {
		s.logger.Error("recap failed", "error", err)
		return
	}
	if len(alarms) == 0 || s.notifier == nil {
		return
	}

	var b strings.Builder
	for _, alarm := range alarms {
		days := alarm.Days
		if days == "" {
			days = "une seule fois"
		}
		fmt.Fprintf(&b, "• %s : %s (%s)\n", alarm.Time, alarm.Playlist, days)
	}
	err = s.notifier.Notify(channels.Notification{
		Title: "⏰ Récapitulatif de tes alarmes",
		Body:  b.String(),
		Color: colorRecap,
		DM:    true,
	})
	if err != nil {
		s.logger.Error("recap notify failed", "error", err)
	}
}

// scheduleNextRecap picks a random time between 08:00 and 20:59 on the
// given day.
func (s *Scheduler) scheduleNextRecap(day time.Time) {
	target := time.Date(day.Year(), day.Month(), day.Day(),
		8+rand.Intn(13), rand.Intn(60), 0, 0, s.location)
	if target.Before(s.now().In(s.location)) {
		target = target.AddDate(0, 0, 1)
	}
	s.mu.Lock()
	s.nextRecap = target
	s.mu.Unlock()
	s.logger.Info("recap scheduled", "at", target.Format("02/01 15:04"))
}
