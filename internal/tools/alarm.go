package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/normanking/enola/internal/store"
)

var hourRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// weekDays are the day tokens accepted in a recurrence list.
var weekDays = []string{"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche"}

// Alarms persists Spotify wake-up alarms; the scheduler rings them.
type Alarms struct {
	store *store.Store
}

// NewAlarms creates the alarm tool over the shared store.
func NewAlarms(st *store.Store) *Alarms {
	return &Alarms{store: st}
}

func (a *Alarms) Spec() *Spec {
	return &Spec{
		Name:        "creer_alarme",
		Description: "Programme une alarme Spotify. Préciser les jours si récurrent.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"heure_str": {Type: "string", Description: "Heure au format HH:MM"},
				"playlist":  {Type: "string", Description: "Nom playlist", Default: "Titres Likés"},
				"jours_str": {Type: "string", Description: "Jours de récurrence (ex: 'lundi,mardi', 'semaine', 'weekend'). Laisser vide pour une seule fois."},
			},
			Required: []string{"heure_str"},
		},
	}
}

func (a *Alarms) Handle(ctx context.Context, args map[string]any) string {
	heure := StringArg(args, "heure_str", "")
	playlist := StringArg(args, "playlist", "Titres Likés")
	jours := StringArg(args, "jours_str", "")

	if !hourRe.MatchString(heure) {
		return fmt.Sprintf("Heure '%s' invalide, il me faut HH:MM.", heure)
	}
	if len(heure) == 4 {
		heure = "0" + heure
	}

	days, err := normalizeDays(jours)
	if err != nil {
		return err.Error()
	}

	if _, err := a.store.AddAlarm(ctx, store.Alarm{Time: heure, Playlist: playlist, Days: days}); err != nil {
		return "Erreur lors de la création de l'alarme."
	}
	if days == "" {
		return fmt.Sprintf("Alarme %s OK (une seule fois, playlist '%s').", heure, playlist)
	}
	return fmt.Sprintf("Alarme %s OK (%s, playlist '%s').", heure, days, playlist)
}

// normalizeDays expands the shortcuts and validates day names. Returns
// a comma-separated lowercase list, empty for one-shot.
func normalizeDays(jours string) (string, error) {
	jours = strings.ToLower(strings.TrimSpace(jours))
	switch jours {
	case "":
		return "", nil
	case "semaine":
		return strings.Join(weekDays[:5], ","), nil
	case "weekend", "week-end":
		return strings.Join(weekDays[5:], ","), nil
	}

	var out []string
	for _, part := range strings.Split(jours, ",") {
		day := strings.TrimSpace(part)
		if day == "" {
			continue
		}
		if !validDay(day) {
			return "", fmt.Errorf("Jour '%s' inconnu.", day)
		}
		out = append(out, day)
	}
	return strings.Join(out, ","), nil
}

func validDay(day string) bool {
	for _, d := range weekDays {
		if d == day {
			return true
		}
	}
	return false
}
