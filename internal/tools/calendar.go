package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// frenchMonths spells out months for the spoken confirmation.
var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Agenda wraps the Google Calendar v3 REST API with two tools: adding
// an event and reading a day's schedule. Auth is a refresh-token grant,
// same flow as Spotify.
type Agenda struct {
	client     *http.Client
	apiURL     string
	tokenURL   string
	calendarID string

	clientID     string
	clientSecret string
	refreshToken string

	location *time.Location
	now      func() time.Time

	mu          sync.Mutex
	accessToken string
	expiry      time.Time
}

// NewAgenda creates the calendar tool pair.
func NewAgenda(clientID, clientSecret, refreshToken, calendarID string) *Agenda {
	if calendarID == "" {
		calendarID = "primary"
	}
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.Local
	}
	return &Agenda{
		client:       &http.Client{Timeout: 10 * time.Second},
		apiURL:       "https://www.googleapis.com/calendar/v3",
		tokenURL:     "https://oauth2.googleapis.com/token",
		calendarID:   calendarID,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		location:     loc,
		now:          time.Now,
	}
}

func (a *Agenda) configured() bool {
	return a.clientID != "" && a.clientSecret != "" && a.refreshToken != ""
}

// AddSpec describes ajouter_agenda.
func (a *Agenda) AddSpec() *Spec {
	return &Spec{
		Name:        "ajouter_agenda",
		Description: "Ajoute un RDV à l'agenda.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"titre":    {Type: "string", Description: "Titre de l'événement"},
				"date_str": {Type: "string", Description: "Date ISO (YYYY-MM-DDTHH:MM:SS)"},
			},
			Required: []string{"titre", "date_str"},
		},
	}
}

// ConsultSpec describes consulter_agenda.
func (a *Agenda) ConsultSpec() *Spec {
	return &Spec{
		Name:        "consulter_agenda",
		Description: "Lit l'agenda.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"date_cible_str": {Type: "string", Description: "Date cible ISO ou 'aujourd'hui'"},
			},
		},
	}
}

// HandleAdd inserts a one-hour event. Dates the model places in a past
// year are bumped to the current year; events still in the past are
// refused so the model can re-ask.
func (a *Agenda) HandleAdd(ctx context.Context, args map[string]any) string {
	if !a.configured() {
		return "Je n'ai pas accès à ton agenda Google (Token manquant)."
	}
	titre := StringArg(args, "titre", "")
	dateStr := StringArg(args, "date_str", "")

	start, err := a.parseLocal(dateStr)
	if err != nil {
		return "Je n'ai pas compris la date donnée par le système."
	}

	now := a.now().In(a.location)
	if start.Year() < now.Year() {
		adjusted, err := replaceYear(start, now.Year())
		if err != nil {
			return "Je n'ai pas compris la date donnée par le système."
		}
		start = adjusted
	}
	if start.Before(now) {
		return "ERREUR_DATE_PASSEE: la date calculée est dans le passé"
	}

	end := start.Add(time.Hour)
	event := map[string]any{
		"summary": titre,
		"start":   map[string]string{"dateTime": start.Format(time.RFC3339), "timeZone": "Europe/Paris"},
		"end":     map[string]string{"dateTime": end.Format(time.RFC3339), "timeZone": "Europe/Paris"},
	}
	if err := a.postJSON(ctx, "/calendars/"+url.PathEscape(a.calendarID)+"/events", event); err != nil {
		return "J'ai eu un souci technique avec l'agenda."
	}

	return fmt.Sprintf("C'est noté, '%s' ajouté pour le %d %s à %d heures.",
		titre, start.Day(), frenchMonths[start.Month()-1], start.Hour())
}

// HandleConsult reads the events of the target day.
func (a *Agenda) HandleConsult(ctx context.Context, args map[string]any) string {
	if !a.configured() {
		return "Je n'ai pas accès à ton agenda."
	}
	dateStr := StringArg(args, "date_cible_str", "")

	now := a.now().In(a.location)
	target := now
	if dateStr != "" {
		if parsed, err := a.parseLocal(dateStr); err == nil {
			target = parsed
			if target.Year() < now.Year() {
				if adjusted, err := replaceYear(target, now.Year()); err == nil {
					target = adjusted
				}
			}
		}
	}

	dayStart := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, a.location)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	q := url.Values{
		"timeMin":      {dayStart.Format(time.RFC3339)},
		"timeMax":      {dayEnd.Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	var out struct {
		Items []struct {
			Summary string `json:"summary"`
			Start   struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
		} `json:"items"`
	}
	path := "/calendars/" + url.PathEscape(a.calendarID) + "/events?" + q.Encode()
	if err := a.getJSON(ctx, path, &out); err != nil {
		return "Impossible de lire l'agenda pour l'instant."
	}

	if len(out.Items) == 0 {
		return "Rien de prévu pour le moment."
	}

	var b strings.Builder
	b.WriteString("Voici le programme : ")
	for _, ev := range out.Items {
		heure := "Toute la journée"
		if ev.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, ev.Start.DateTime); err == nil {
				heure = t.In(a.location).Format("15:04")
			}
		}
		fmt.Fprintf(&b, "%s à %s. ", ev.Summary, heure)
	}
	return b.String()
}

// parseLocal accepts the ISO shapes the model produces, with or
// without a time part.
func (a *Agenda) parseLocal(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, a.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date invalide: %q", s)
}

// replaceYear moves a date into another year, clamping Feb 29.
func replaceYear(t time.Time, year int) (time.Time, error) {
	day := t.Day()
	if t.Month() == time.February && day == 29 {
		day = 28
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, t.Location()), nil
}

func (a *Agenda) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.expiry) {
		return a.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {a.refreshToken},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh token: statut %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	a.accessToken = tok.AccessToken
	a.expiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return a.accessToken, nil
}

func (a *Agenda) getJSON(ctx context.Context, path string, v any) error {
	tok, err := a.token(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (a *Agenda) postJSON(ctx context.Context, path string, body any) error {
	tok, err := a.token(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+path, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return nil
}
