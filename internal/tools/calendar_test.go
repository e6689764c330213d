package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeCalendar serves the token endpoint and the events collection.
type fakeCalendar struct {
	events []map[string]any
}

func newFakeAgenda(t *testing.T, now time.Time) (*fakeCalendar, *Agenda) {
	t.Helper()
	fc := &fakeCalendar{}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"at-123","expires_in":3600}`)
	}))
	t.Cleanup(tokenSrv.Close)

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodPost:
			var ev map[string]any
			_ = json.NewDecoder(r.Body).Decode(&ev)
			fc.events = append(fc.events, ev)
			fmt.Fprint(w, `{}`)
		case http.MethodGet:
			fmt.Fprint(w, `{"items":[
				{"summary":"Dentiste","start":{"dateTime":"2026-09-01T14:30:00+02:00"}},
				{"summary":"Anniversaire","start":{"date":"2026-09-01"}}
			]}`)
		}
	}))
	t.Cleanup(apiSrv.Close)

	a := NewAgenda("cid", "secret", "refresh", "primary")
	a.apiURL = apiSrv.URL
	a.tokenURL = tokenSrv.URL
	a.now = func() time.Time { return now }
	return fc, a
}

func TestAgendaAddConfirmsInFrench(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	fc, a := newFakeAgenda(t, now)

	got := a.HandleAdd(context.Background(), map[string]any{
		"titre":    "Dentiste",
		"date_str": "2026-09-15T14:00:00",
	})
	want := "C'est noté, 'Dentiste' ajouté pour le 15 septembre à 14 heures."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if len(fc.events) != 1 {
		t.Fatalf("expected one event created, got %d", len(fc.events))
	}
	if fc.events[0]["summary"] != "Dentiste" {
		t.Errorf("unexpected event: %v", fc.events[0])
	}
}

func TestAgendaAddBumpsPastYear(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fc, a := newFakeAgenda(t, now)

	// The model often emits its training-era year; the date moves to
	// the current one.
	got := a.HandleAdd(context.Background(), map[string]any{
		"titre":    "Concert",
		"date_str": "2023-07-10T20:00:00",
	})
	if !strings.Contains(got, "10 juillet à 20 heures") {
		t.Fatalf("year not bumped: %q", got)
	}
	if len(fc.events) != 1 {
		t.Fatal("event not created")
	}
}

func TestAgendaAddRefusesPastDate(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	_, a := newFakeAgenda(t, now)

	got := a.HandleAdd(context.Background(), map[string]any{
		"titre":    "Machine à remonter le temps",
		"date_str": "2026-01-05T09:00:00",
	})
	if got != "ERREUR_DATE_PASSEE: la date calculée est dans le passé" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAgendaAddRejectsGarbageDate(t *testing.T) {
	_, a := newFakeAgenda(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	got := a.HandleAdd(context.Background(), map[string]any{"titre": "X", "date_str": "demain soir"})
	if got != "Je n'ai pas compris la date donnée par le système." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAgendaConsultListsSchedule(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	_, a := newFakeAgenda(t, now)

	got := a.HandleConsult(context.Background(), map[string]any{})
	if !strings.HasPrefix(got, "Voici le programme : ") {
		t.Fatalf("unexpected reply: %q", got)
	}
	if !strings.Contains(got, "Dentiste à 14:30.") {
		t.Errorf("timed event missing: %q", got)
	}
	if !strings.Contains(got, "Anniversaire à Toute la journée.") {
		t.Errorf("all-day event missing: %q", got)
	}
}

func TestAgendaUnconfigured(t *testing.T) {
	a := NewAgenda("", "", "", "")
	got := a.HandleAdd(context.Background(), map[string]any{"titre": "X", "date_str": "2026-09-15T14:00:00"})
	if !strings.Contains(got, "Token manquant") {
		t.Fatalf("unexpected reply: %q", got)
	}
	if got := a.HandleConsult(context.Background(), map[string]any{}); got != "Je n'ai pas accès à ton agenda." {
		t.Fatalf("unexpected reply: %q", got)
	}
}
