package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// likedWords triggers the saved-tracks mode in a play request.
var likedWords = []string{
	"titres likés", "titres likes", "mes likes", "coups de cœur",
	"favoris", "ma musique", "mes titres likés", "titres reliqués",
}

// Spotify drives playback through the Web API using a long-lived
// refresh token. Access tokens are refreshed lazily and cached.
type Spotify struct {
	client   *http.Client
	apiURL   string
	tokenURL string

	clientID      string
	clientSecret  string
	refreshToken  string
	defaultDevice string

	mu          sync.Mutex
	accessToken string
	expiry      time.Time
}

// NewSpotify creates the playback tool. Missing credentials leave it
// registered but answering "Spotify non configuré.".
func NewSpotify(clientID, clientSecret, refreshToken, defaultDevice string) *Spotify {
	return &Spotify{
		client:        &http.Client{Timeout: 10 * time.Second},
		apiURL:        "https://api.spotify.com/v1",
		tokenURL:      "https://accounts.spotify.com/api/token",
		clientID:      clientID,
		clientSecret:  clientSecret,
		refreshToken:  refreshToken,
		defaultDevice: defaultDevice,
	}
}

func (s *Spotify) Spec() *Spec {
	return &Spec{
		Name:        "commander_spotify",
		Description: "Pilote la musique Spotify.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"action": {Type: "string", Description: "Action à effectuer",
					Enum: []string{"play", "pause", "next", "previous"}},
				"recherche": {Type: "string", Description: "Titre, artiste ou 'Titres Likés'"},
				"appareil":  {Type: "string", Description: "Nom de l'appareil cible"},
				"position":  {Type: "integer", Description: "Numéro de piste (si playlist)"},
			},
			Required: []string{"action"},
		},
	}
}

func (s *Spotify) configured() bool {
	return s.clientID != "" && s.clientSecret != "" && s.refreshToken != ""
}

func (s *Spotify) Handle(ctx context.Context, args map[string]any) string {
	if !s.configured() {
		return "Spotify non configuré."
	}
	action := StringArg(args, "action", "")
	recherche := StringArg(args, "recherche", "")
	appareil := StringArg(args, "appareil", s.defaultDevice)
	position := IntArg(args, "position", 0)

	deviceID, err := s.findDevice(ctx, appareil)
	if err != nil {
		return "Erreur technique Spotify."
	}
	if deviceID == "" {
		if appareil != "" {
			return fmt.Sprintf("Je ne trouve pas l'appareil '%s'.", appareil)
		}
		return "Aucun appareil Spotify disponible."
	}

	offset := position - 1
	if offset < 0 {
		offset = 0
	}

	switch action {
	case "play":
		return s.play(ctx, deviceID, recherche, offset)
	case "pause":
		if err := s.playerPut(ctx, "/me/player/pause", deviceID, nil); err != nil {
			return "Erreur technique Spotify."
		}
		return "Pause."
	case "next":
		if err := s.playerPost(ctx, "/me/player/next", deviceID); err != nil {
			return "Erreur technique Spotify."
		}
		return "Suivant."
	case "previous":
		if err := s.playerPost(ctx, "/me/player/previous", deviceID); err != nil {
			return "Erreur technique Spotify."
		}
		return "Précédent."
	}
	return "Action inconnue."
}

// PlayPlaylist starts a named playlist on a device. Used by the alarm
// job to ring through the speakers.
func (s *Spotify) PlayPlaylist(ctx context.Context, name, device string) error {
	if !s.configured() {
		return fmt.Errorf("spotify non configuré")
	}
	deviceID, err := s.findDevice(ctx, device)
	if err != nil {
		return err
	}
	if deviceID == "" {
		return fmt.Errorf("aucun appareil disponible")
	}
	if isLikedQuery(name) {
		return s.playLiked(ctx, deviceID, 0)
	}
	uri, _, err := s.findPlaylist(ctx, name)
	if err != nil {
		return err
	}
	if uri == "" {
		return fmt.Errorf("playlist %q introuvable", name)
	}
	s.disableShuffle(ctx, deviceID)
	return s.playerPut(ctx, "/me/player/play", deviceID, map[string]any{"context_uri": uri})
}

// NowPlaying reports the current track as "Titre - Artiste", or false
// when nothing plays. Feeds the Discord presence.
func (s *Spotify) NowPlaying(ctx context.Context) (string, bool) {
	if !s.configured() {
		return "", false
	}
	var out struct {
		IsPlaying bool `json:"is_playing"`
		Item      struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"item"`
	}
	if err := s.getJSON(ctx, "/me/player/currently-playing", &out); err != nil {
		return "", false
	}
	if !out.IsPlaying || out.Item.Name == "" {
		return "", false
	}
	track := out.Item.Name
	if len(out.Item.Artists) > 0 {
		track += " - " + out.Item.Artists[0].Name
	}
	return track, true
}

func isLikedQuery(recherche string) bool {
	low := strings.ToLower(recherche)
	for _, m := range likedWords {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// play resolves the request in order: resume, liked tracks, user
// playlists, then global search.
func (s *Spotify) play(ctx context.Context, deviceID, recherche string, offset int) string {
	// A position without a title means the liked tracks.
	if offset > 0 && recherche == "" {
		recherche = "Titres Likés"
	}
	if recherche == "" {
		if err := s.playerPut(ctx, "/me/player/play", deviceID, nil); err != nil {
			return "Erreur technique Spotify."
		}
		return "Lecture."
	}

	if isLikedQuery(recherche) {
		if err := s.playLiked(ctx, deviceID, offset); err != nil {
			return "Erreur lors du lancement des likes."
		}
		return fmt.Sprintf("Titres likés lancés à partir du titre n°%d.", offset+1)
	}

	uri, name, err := s.findPlaylist(ctx, recherche)
	if err == nil && uri != "" {
		s.disableShuffle(ctx, deviceID)
		body := map[string]any{"context_uri": uri}
		if offset > 0 {
			body["offset"] = map[string]any{"position": offset}
		}
		if err := s.playerPut(ctx, "/me/player/play", deviceID, body); err != nil {
			return "Erreur technique Spotify."
		}
		return fmt.Sprintf("Playlist '%s' lancée.", name)
	}

	return s.playFromSearch(ctx, deviceID, recherche)
}

func (s *Spotify) playLiked(ctx context.Context, deviceID string, offset int) error {
	limit := 50
	if offset > 40 {
		limit = offset + 10
	}
	var out struct {
		Items []struct {
			Track struct {
				URI string `json:"uri"`
			} `json:"track"`
		} `json:"items"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("/me/tracks?limit=%d", limit), &out); err != nil {
		return err
	}
	if len(out.Items) == 0 {
		return fmt.Errorf("bibliothèque vide")
	}
	if offset >= len(out.Items) {
		offset = 0
	}
	uris := make([]string, 0, len(out.Items)-offset)
	for _, it := range out.Items[offset:] {
		uris = append(uris, it.Track.URI)
	}
	s.disableShuffle(ctx, deviceID)
	return s.playerPut(ctx, "/me/player/play", deviceID, map[string]any{"uris": uris})
}

func (s *Spotify) findPlaylist(ctx context.Context, recherche string) (uri, name string, err error) {
	var out struct {
		Items []struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"items"`
	}
	if err := s.getJSON(ctx, "/me/playlists?limit=50", &out); err != nil {
		return "", "", err
	}
	needle := strings.ToLower(recherche)
	for _, p := range out.Items {
		if strings.EqualFold(p.Name, recherche) {
			return p.URI, p.Name, nil
		}
	}
	for _, p := range out.Items {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p.URI, p.Name, nil
		}
	}
	return "", "", nil
}

func (s *Spotify) playFromSearch(ctx context.Context, deviceID, recherche string) string {
	var out struct {
		Tracks struct {
			Items []struct {
				Name string `json:"name"`
				URI  string `json:"uri"`
			} `json:"items"`
		} `json:"tracks"`
		Artists struct {
			Items []struct {
				Name string `json:"name"`
				URI  string `json:"uri"`
			} `json:"items"`
		} `json:"artists"`
	}
	q := url.QueryEscape(recherche)
	if err := s.getJSON(ctx, "/search?q="+q+"&limit=1&type=track,artist,album", &out); err != nil {
		return "Erreur technique Spotify."
	}

	if len(out.Tracks.Items) > 0 {
		t := out.Tracks.Items[0]
		if err := s.playerPut(ctx, "/me/player/play", deviceID, map[string]any{"uris": []string{t.URI}}); err != nil {
			return "Erreur technique Spotify."
		}
		return fmt.Sprintf("Titre '%s' lancé.", t.Name)
	}
	if len(out.Artists.Items) > 0 {
		a := out.Artists.Items[0]
		if err := s.playerPut(ctx, "/me/player/play", deviceID, map[string]any{"context_uri": a.URI}); err != nil {
			return "Erreur technique Spotify."
		}
		return fmt.Sprintf("Artiste '%s' lancé.", a.Name)
	}
	return fmt.Sprintf("Rien trouvé pour %s.", recherche)
}

// findDevice resolves a speaker name to a device id: substring match on
// the name, otherwise the active device, otherwise the first one.
// Empty id with nil error means nothing matched.
func (s *Spotify) findDevice(ctx context.Context, name string) (string, error) {
	var out struct {
		Devices []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			IsActive bool   `json:"is_active"`
		} `json:"devices"`
	}
	if err := s.getJSON(ctx, "/me/player/devices", &out); err != nil {
		return "", err
	}
	if len(out.Devices) == 0 {
		return "", nil
	}

	if name != "" {
		needle := strings.ToLower(name)
		for _, d := range out.Devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				return d.ID, nil
			}
		}
		return "", nil
	}
	for _, d := range out.Devices {
		if d.IsActive {
			return d.ID, nil
		}
	}
	return out.Devices[0].ID, nil
}

func (s *Spotify) disableShuffle(ctx context.Context, deviceID string) {
	// Shuffle off is best effort, a restricted device refuses it.
	_ = s.playerPut(ctx, "/me/player/shuffle?state=false", deviceID, nil)
}

// token returns a valid access token, refreshing through the OAuth
// refresh grant when the cached one expired.
func (s *Spotify) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" && time.Now().Before(s.expiry) {
		return s.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
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
	s.accessToken = tok.AccessToken
	s.expiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return s.accessToken, nil
}

func (s *Spotify) getJSON(ctx context.Context, path string, v any) error {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (s *Spotify) playerPut(ctx context.Context, path, deviceID string, body map[string]any) error {
	full := path
	if deviceID != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		full = path + sep + "device_id=" + url.QueryEscape(deviceID)
	}
	resp, err := s.do(ctx, http.MethodPut, full, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return nil
}

func (s *Spotify) playerPost(ctx context.Context, path, deviceID string) error {
	full := path
	if deviceID != "" {
		full = path + "?device_id=" + url.QueryEscape(deviceID)
	}
	resp, err := s.do(ctx, http.MethodPost, full, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return nil
}

func (s *Spotify) do(ctx context.Context, method, path string, body map[string]any) (*http.Response, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}
