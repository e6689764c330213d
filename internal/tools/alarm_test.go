package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/normanking/enola/internal/store"
)

func testAlarms(t *testing.T) *Alarms {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "enola.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewAlarms(st)
}

func TestAlarmOneShot(t *testing.T) {
	a := testAlarms(t)
	got := a.Handle(context.Background(), map[string]any{"heure_str": "7:30"})
	want := "Alarme 07:30 OK (une seule fois, playlist 'Titres Likés')."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAlarmRecurring(t *testing.T) {
	a := testAlarms(t)
	got := a.Handle(context.Background(), map[string]any{
		"heure_str": "08:00",
		"playlist":  "Réveil",
		"jours_str": "lundi, mercredi",
	})
	want := "Alarme 08:00 OK (lundi,mercredi, playlist 'Réveil')."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAlarmRejectsBadHour(t *testing.T) {
	a := testAlarms(t)
	for _, heure := range []string{"25:00", "7h30", "12:60", "midi"} {
		got := a.Handle(context.Background(), map[string]any{"heure_str": heure})
		if !strings.Contains(got, "invalide") {
			t.Errorf("heure %q: expected rejection, got %q", heure, got)
		}
	}
}

func TestAlarmRejectsUnknownDay(t *testing.T) {
	a := testAlarms(t)
	got := a.Handle(context.Background(), map[string]any{"heure_str": "07:30", "jours_str": "lundi,caturday"})
	if got != "Jour 'caturday' inconnu." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestNormalizeDaysShortcuts(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"semaine", "lundi,mardi,mercredi,jeudi,vendredi"},
		{"weekend", "samedi,dimanche"},
		{"week-end", "samedi,dimanche"},
		{"LUNDI", "lundi"},
		{" mardi , jeudi ", "mardi,jeudi"},
	}
	for _, c := range cases {
		got, err := normalizeDays(c.in)
		if err != nil {
			t.Errorf("normalizeDays(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("normalizeDays(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
