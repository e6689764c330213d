package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/normanking/enola/internal/store"
)

// AniList talks GraphQL to anilist.co and keeps the watchlist in the
// store. Three tools plus the airing check the episode job runs.
type AniList struct {
	client *http.Client
	apiURL string
	store  *store.Store
	now    func() time.Time
}

// NewAniList creates the anime tools over the shared store.
func NewAniList(st *store.Store) *AniList {
	return &AniList{
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: "https://graphql.anilist.co",
		store:  st,
		now:    time.Now,
	}
}

// SearchSpec describes recherche_anime.
func (a *AniList) SearchSpec() *Spec {
	return &Spec{
		Name:        "recherche_anime",
		Description: "Cherche un anime sur AniList (ID/Image) AVANT ajout.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"query": {Type: "string", Description: "Nom de l'anime à chercher"},
			},
			Required: []string{"query"},
		},
	}
}

// AddSpec describes ajouter_anime_confirme.
func (a *AniList) AddSpec() *Spec {
	return &Spec{
		Name:        "ajouter_anime_confirme",
		Description: "Ajoute un anime confirmé à la watchlist.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"media_id": {Type: "integer", Description: "ID de l'anime trouvé"},
				"titre":    {Type: "string", Description: "Titre de l'anime"},
			},
			Required: []string{"media_id", "titre"},
		},
	}
}

// ManageSpec describes gerer_watchlist.
func (a *AniList) ManageSpec() *Spec {
	return &Spec{
		Name:        "gerer_watchlist",
		Description: "Liste ou supprime des animes de la watchlist.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"action": {Type: "string", Description: "Action watchlist",
					Enum: []string{"lister", "supprimer"}},
				"query": {Type: "string", Description: "Nom de l'anime si suppression"},
			},
			Required: []string{"action"},
		},
	}
}

type media struct {
	ID    int `json:"id"`
	Title struct {
		Romaji string `json:"romaji"`
	} `json:"title"`
	CoverImage struct {
		Large string `json:"large"`
	} `json:"coverImage"`
	SiteURL       string `json:"siteUrl"`
	ExternalLinks []struct {
		Site string `json:"site"`
		URL  string `json:"url"`
	} `json:"externalLinks"`
}

// HandleSearch looks an anime up. The "Demande confirmation" trailer is
// what keeps the next turn in the anime flow.
func (a *AniList) HandleSearch(ctx context.Context, args map[string]any) string {
	query := StringArg(args, "query", "")

	const gql = `query ($search: String) {
	  Media (search: $search, type: ANIME) {
	    id
	    title { romaji }
	    coverImage { large }
	    siteUrl
	  }
	}`
	var out struct {
		Data struct {
			Media *media `json:"Media"`
		} `json:"data"`
	}
	if err := a.graphql(ctx, gql, map[string]any{"search": query}, &out); err != nil {
		return fmt.Sprintf("Erreur API AniList : %v", err)
	}
	m := out.Data.Media
	if m == nil {
		return "❌ Anime introuvable sur AniList."
	}
	return fmt.Sprintf("J'ai trouvé : %s (ID: %d)\nLien image: %s\nURL: %s\nDemande confirmation à l'utilisateur.",
		m.Title.Romaji, m.ID, m.CoverImage.Large, m.SiteURL)
}

// HandleAdd stores a confirmed anime.
func (a *AniList) HandleAdd(ctx context.Context, args map[string]any) string {
	mediaID := IntArg(args, "media_id", 0)
	titre := StringArg(args, "titre", "")
	if mediaID == 0 {
		return "Erreur : L'ID doit être un nombre."
	}

	entry := store.Anime{ID: mediaID, Title: titre}
	if m, err := a.lookupByID(ctx, mediaID); err == nil && m != nil {
		entry.ImageURL = m.CoverImage.Large
		if titre == "" {
			entry.Title = m.Title.Romaji
		}
	}
	if err := a.store.AddAnime(ctx, entry); err != nil {
		if strings.Contains(err.Error(), "déjà") {
			return fmt.Sprintf("⚠️ %s est déjà dans la liste.", entry.Title)
		}
		return "Erreur lors de l'ajout à la watchlist."
	}
	return fmt.Sprintf("✅ %s a été ajouté aux notifications.", entry.Title)
}

// HandleManage lists or removes watchlist entries.
func (a *AniList) HandleManage(ctx context.Context, args map[string]any) string {
	action := StringArg(args, "action", "")
	query := StringArg(args, "query", "")

	switch action {
	case "lister":
		list, err := a.store.ListAnime(ctx)
		if err != nil {
			return "Erreur récupération liste."
		}
		if len(list) == 0 {
			return "La watchlist est vide."
		}
		var b strings.Builder
		b.WriteString("**📺 Watchlist actuelle :**")
		for _, anime := range list {
			b.WriteString("\n- " + anime.Title)
		}
		return b.String()

	case "supprimer":
		m, err := a.search(ctx, query)
		if err != nil || m == nil {
			return "Je ne trouve pas cet anime pour le supprimer."
		}
		removed, err := a.store.RemoveAnime(ctx, m.ID)
		if err != nil {
			return "Erreur lors de la suppression."
		}
		if !removed {
			return fmt.Sprintf("%s n'était pas dans la liste.", m.Title.Romaji)
		}
		return fmt.Sprintf("🗑️ %s retiré de la watchlist.", m.Title.Romaji)
	}
	return "Action inconnue."
}

// Release is a freshly aired episode of a watched anime.
type Release struct {
	Title      string
	Episode    int
	CrunchyURL string
	AniListURL string
	ImageURL   string
}

// CheckNewEpisodes queries the airing schedule around now for the whole
// watchlist and returns the episodes not yet notified.
func (a *AniList) CheckNewEpisodes(ctx context.Context) ([]Release, error) {
	list, err := a.store.ListAnime(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	ids := make([]int, len(list))
	for i, anime := range list {
		ids[i] = anime.ID
	}

	now := a.now().Unix()
	const gql = `query ($start: Int, $end: Int, $ids: [Int]) {
	  Page {
	    airingSchedules(airingAt_greater: $start, airingAt_lesser: $end, mediaId_in: $ids) {
	      episode
	      airingAt
	      media {
	        id
	        title { romaji }
	        siteUrl
	        coverImage { large }
	        externalLinks { site url }
	      }
	    }
	  }
	}`
	var out struct {
		Data struct {
			Page struct {
				AiringSchedules []struct {
					Episode  int   `json:"episode"`
					AiringAt int64 `json:"airingAt"`
					Media    media `json:"media"`
				} `json:"airingSchedules"`
			} `json:"Page"`
		} `json:"data"`
	}
	vars := map[string]any{"start": now - 3600, "end": now + 3600, "ids": ids}
	if err := a.graphql(ctx, gql, vars, &out); err != nil {
		return nil, err
	}

	var releases []Release
	for _, item := range out.Data.Page.AiringSchedules {
		// Only announce once the episode is out or about to be.
		if item.AiringAt > now+120 {
			continue
		}
		fresh, err := a.store.MarkEpisodeSeen(ctx, item.Media.ID, item.Episode)
		if err != nil || !fresh {
			continue
		}
		link := item.Media.SiteURL
		for _, ext := range item.Media.ExternalLinks {
			if strings.Contains(ext.Site, "Crunchyroll") {
				link = ext.URL
				break
			}
		}
		releases = append(releases, Release{
			Title:      item.Media.Title.Romaji,
			Episode:    item.Episode,
			CrunchyURL: link,
			AniListURL: item.Media.SiteURL,
			ImageURL:   item.Media.CoverImage.Large,
		})
	}
	return releases, nil
}

func (a *AniList) search(ctx context.Context, query string) (*media, error) {
	const gql = `query ($s: String) { Media (search: $s, type: ANIME) { id title { romaji } } }`
	var out struct {
		Data struct {
			Media *media `json:"Media"`
		} `json:"data"`
	}
	if err := a.graphql(ctx, gql, map[string]any{"s": query}, &out); err != nil {
		return nil, err
	}
	return out.Data.Media, nil
}

func (a *AniList) lookupByID(ctx context.Context, id int) (*media, error) {
	const gql = `query ($id: Int) { Media (id: $id, type: ANIME) { id title { romaji } coverImage { large } } }`
	var out struct {
		Data struct {
			Media *media `json:"Media"`
		} `json:"data"`
	}
	if err := a.graphql(ctx, gql, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	return out.Data.Media, nil
}

func (a *AniList) graphql(ctx context.Context, query string, variables map[string]any, v any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
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
