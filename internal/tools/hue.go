package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// hueColors maps French color names to CIE xy coordinates.
var hueColors = map[string][2]float64{
	"rouge":  {0.6679, 0.3181},
	"vert":   {0.4091, 0.5180},
	"bleu":   {0.1670, 0.0400},
	"jaune":  {0.4325, 0.5007},
	"orange": {0.5562, 0.4084},
	"violet": {0.2700, 0.1300},
	"rose":   {0.3800, 0.1400},
	"blanc":  {0.3227, 0.3290},
}

// Hue drives Philips Hue lights and groups through the bridge REST API.
// Groups are matched before individual lights so "Salon" hits the room.
type Hue struct {
	client  *http.Client
	baseURL string
}

// NewHue creates the light tool for a bridge at the given IP with an
// authorized API user.
func NewHue(bridgeIP, user string) *Hue {
	h := &Hue{client: &http.Client{Timeout: 5 * time.Second}}
	if bridgeIP != "" && user != "" {
		h.baseURL = fmt.Sprintf("http://%s/api/%s", bridgeIP, user)
	}
	return h
}

func (h *Hue) Spec() *Spec {
	return &Spec{
		Name:        "commander_lumiere",
		Description: "Pilote les lumières Hue.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"action": {Type: "string", Description: "Action lumière",
					Enum: []string{"allumer", "eteindre", "couleur", "luminosite"}},
				"cible":  {Type: "string", Description: "Nom de la lampe ou pièce (ex: Salon)"},
				"valeur": {Type: "string", Description: "Couleur (rouge, bleu...) ou luminosité (0-100)"},
			},
			Required: []string{"action", "cible"},
		},
	}
}

func (h *Hue) Handle(ctx context.Context, args map[string]any) string {
	if h.baseURL == "" {
		return "Pont Hue injoignable."
	}
	action := StringArg(args, "action", "")
	cible := StringArg(args, "cible", "")
	valeur := StringArg(args, "valeur", "")

	path, ok := h.findTarget(ctx, cible)
	if !ok {
		return fmt.Sprintf("Lumière ou pièce '%s' introuvable.", cible)
	}

	state := map[string]any{}
	switch action {
	case "allumer":
		state["on"] = true
	case "eteindre":
		state["on"] = false
	case "couleur":
		xy, ok := hueColors[strings.ToLower(valeur)]
		if !ok {
			return fmt.Sprintf("Couleur '%s' inconnue.", valeur)
		}
		state["xy"] = []float64{xy[0], xy[1]}
	case "luminosite":
		bri := 254
		if valeur != "" {
			pct, err := strconv.Atoi(valeur)
			if err != nil {
				return fmt.Sprintf("Luminosité '%s' invalide.", valeur)
			}
			bri = pct * 254 / 100
			if bri < 0 {
				bri = 0
			}
			if bri > 254 {
				bri = 254
			}
		}
		state["bri"] = bri
	default:
		return fmt.Sprintf("Action inconnue : %s", action)
	}

	if err := h.putState(ctx, path, state); err != nil {
		return fmt.Sprintf("Erreur Hue: %v", err)
	}
	return "Fait."
}

// findTarget resolves a name to the bridge state path, groups first.
func (h *Hue) findTarget(ctx context.Context, cible string) (string, bool) {
	needle := strings.ToLower(cible)

	groups := map[string]struct {
		Name string `json:"name"`
	}{}
	if err := h.getJSON(ctx, "/groups", &groups); err == nil {
		for id, g := range groups {
			if strings.Contains(strings.ToLower(g.Name), needle) {
				return "/groups/" + id + "/action", true
			}
		}
	}

	lights := map[string]struct {
		Name string `json:"name"`
	}{}
	if err := h.getJSON(ctx, "/lights", &lights); err == nil {
		for id, l := range lights {
			if strings.Contains(strings.ToLower(l.Name), needle) {
				return "/lights/" + id + "/state", true
			}
		}
	}
	return "", false
}

func (h *Hue) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (h *Hue) putState(ctx context.Context, path string, state map[string]any) error {
	body, err := json.Marshal(state)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return nil
}
