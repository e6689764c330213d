package tools

import (
	"github.com/normanking/enola/internal/config"
	"github.com/normanking/enola/internal/store"
)

// Set bundles the integrations behind the registry. The scheduler and
// the Discord presence need direct access to a few of them.
type Set struct {
	Registry *Registry
	Spotify  *Spotify
	AniList  *AniList
}

// NewSet builds every tool from configuration and registers them. The
// registration order is the order the model sees the tools in.
func NewSet(cfg *config.Config, st *store.Store) (*Set, error) {
	spotify := NewSpotify(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret,
		cfg.Spotify.RefreshToken, cfg.Spotify.Device)
	hue := NewHue(cfg.Home.HueBridgeIP, cfg.Home.HueUser)
	wiz := NewWiz(cfg.Home.WizIP)
	agenda := NewAgenda(cfg.Agenda.ClientID, cfg.Agenda.ClientSecret,
		cfg.Agenda.RefreshToken, cfg.Agenda.CalendarID)
	weather := NewWeather(cfg.Home.WeatherCity)
	volume := NewVolume()
	anilist := NewAniList(st)
	alarms := NewAlarms(st)

	r := NewRegistry()
	regs := []struct {
		spec    *Spec
		handler Handler
	}{
		{spotify.Spec(), spotify.Handle},
		{hue.Spec(), hue.Handle},
		{wiz.Spec(), wiz.Handle},
		{agenda.AddSpec(), agenda.HandleAdd},
		{agenda.ConsultSpec(), agenda.HandleConsult},
		{weather.Spec(), weather.Handle},
		{volume.Spec(), volume.Handle},
		{anilist.SearchSpec(), anilist.HandleSearch},
		{anilist.AddSpec(), anilist.HandleAdd},
		{anilist.ManageSpec(), anilist.HandleManage},
		{alarms.Spec(), alarms.Handle},
	}
	for _, reg := range regs {
		if err := r.Register(reg.spec, reg.handler); err != nil {
			return nil, err
		}
	}

	return &Set{Registry: r, Spotify: spotify, AniList: anilist}, nil
}
