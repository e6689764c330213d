package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/normanking/enola/internal/store"
)

// fakeAniList answers the GraphQL queries the tool sends. The query text
// is matched on distinctive fragments rather than parsed.
func fakeAniList(t *testing.T, airingAt int64) (*AniList, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch {
		case strings.Contains(req.Query, "airingSchedules"):
			fmt.Fprintf(w, `{"data":{"Page":{"airingSchedules":[{
				"episode":8,"airingAt":%d,
				"media":{"id":154587,"title":{"romaji":"Frieren"},
					"siteUrl":"https://anilist.co/anime/154587",
					"coverImage":{"large":"https://img/f.jpg"},
					"externalLinks":[{"site":"Crunchyroll","url":"https://crunchyroll.com/frieren"}]}}]}}}`, airingAt)
		case strings.Contains(req.Query, "id: $id"):
			fmt.Fprint(w, `{"data":{"Media":{"id":154587,"title":{"romaji":"Frieren"},"coverImage":{"large":"https://img/f.jpg"}}}}`)
		default:
			search, _ := req.Variables["search"].(string)
			if search == "" {
				search, _ = req.Variables["s"].(string)
			}
			if strings.Contains(strings.ToLower(search), "introuvable") {
				fmt.Fprint(w, `{"data":{"Media":null}}`)
				return
			}
			fmt.Fprint(w, `{"data":{"Media":{"id":154587,"title":{"romaji":"Frieren"},
				"coverImage":{"large":"https://img/f.jpg"},"siteUrl":"https://anilist.co/anime/154587"}}}`)
		}
	}))
	t.Cleanup(srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "enola.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	a := NewAniList(st)
	a.apiURL = srv.URL
	return a, st
}

func TestSearchAsksForConfirmation(t *testing.T) {
	a, _ := fakeAniList(t, 0)
	got := a.HandleSearch(context.Background(), map[string]any{"query": "frieren"})
	if !strings.Contains(got, "Frieren (ID: 154587)") {
		t.Errorf("missing title and id: %q", got)
	}
	if !strings.Contains(got, "Demande confirmation à l'utilisateur.") {
		t.Errorf("missing confirmation trailer: %q", got)
	}
}

func TestSearchNotFound(t *testing.T) {
	a, _ := fakeAniList(t, 0)
	got := a.HandleSearch(context.Background(), map[string]any{"query": "introuvable"})
	if got != "❌ Anime introuvable sur AniList." {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestAddThenDuplicate(t *testing.T) {
	a, st := fakeAniList(t, 0)
	ctx := context.Background()

	got := a.HandleAdd(ctx, map[string]any{"media_id": 154587, "titre": "Frieren"})
	if got != "✅ Frieren a été ajouté aux notifications." {
		t.Fatalf("unexpected reply: %q", got)
	}
	list, err := st.ListAnime(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("watchlist not updated: %v %v", list, err)
	}
	if list[0].ImageURL != "https://img/f.jpg" {
		t.Errorf("image not enriched from lookup: %q", list[0].ImageURL)
	}

	got = a.HandleAdd(ctx, map[string]any{"media_id": 154587, "titre": "Frieren"})
	if got != "⚠️ Frieren est déjà dans la liste." {
		t.Fatalf("unexpected duplicate reply: %q", got)
	}
}

func TestManageListAndRemove(t *testing.T) {
	a, st := fakeAniList(t, 0)
	ctx := context.Background()

	if got := a.HandleManage(ctx, map[string]any{"action": "lister"}); got != "La watchlist est vide." {
		t.Fatalf("unexpected empty-list reply: %q", got)
	}

	if err := st.AddAnime(ctx, store.Anime{ID: 154587, Title: "Frieren"}); err != nil {
		t.Fatal(err)
	}
	got := a.HandleManage(ctx, map[string]any{"action": "lister"})
	if got != "**📺 Watchlist actuelle :**\n- Frieren" {
		t.Fatalf("unexpected list: %q", got)
	}

	got = a.HandleManage(ctx, map[string]any{"action": "supprimer", "query": "frieren"})
	if got != "🗑️ Frieren retiré de la watchlist." {
		t.Fatalf("unexpected removal reply: %q", got)
	}
	list, _ := st.ListAnime(ctx)
	if len(list) != 0 {
		t.Errorf("watchlist should be empty, got %v", list)
	}
}

func TestCheckNewEpisodes(t *testing.T) {
	now := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	a, st := fakeAniList(t, now.Unix()-60)
	a.now = func() time.Time { return now }
	ctx := context.Background()

	if err := st.AddAnime(ctx, store.Anime{ID: 154587, Title: "Frieren"}); err != nil {
		t.Fatal(err)
	}

	releases, err := a.CheckNewEpisodes(ctx)
	if err != nil {
		t.Fatalf("CheckNewEpisodes() failed: %v", err)
	}
	if len(releases) != 1 {
		t.Fatalf("expected one release, got %d", len(releases))
	}
	rel := releases[0]
	if rel.Title != "Frieren" || rel.Episode != 8 {
		t.Errorf("unexpected release: %+v", rel)
	}
	if rel.CrunchyURL != "https://crunchyroll.com/frieren" {
		t.Errorf("expected Crunchyroll link preferred, got %q", rel.CrunchyURL)
	}

	// A second run must not re-announce the same episode.
	releases, err = a.CheckNewEpisodes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(releases) != 0 {
		t.Errorf("episode announced twice: %v", releases)
	}
}

func TestCheckNewEpisodesSkipsFutureAirings(t *testing.T) {
	now := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	a, st := fakeAniList(t, now.Unix()+600)
	a.now = func() time.Time { return now }
	ctx := context.Background()

	if err := st.AddAnime(ctx, store.Anime{ID: 154587, Title: "Frieren"}); err != nil {
		t.Fatal(err)
	}
	releases, err := a.CheckNewEpisodes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(releases) != 0 {
		t.Errorf("future airing must not announce yet: %v", releases)
	}
}
