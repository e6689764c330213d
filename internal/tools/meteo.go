package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Weather answers temperature questions through the Open-Meteo public
// API: a geocoding lookup for the city, then the current temperature.
type Weather struct {
	client      *http.Client
	geocodeURL  string
	forecastURL string
	defaultCity string
}

// NewWeather creates the weather tool. defaultCity answers queries that
// omit the city.
func NewWeather(defaultCity string) *Weather {
	return &Weather{
		client:      &http.Client{Timeout: 10 * time.Second},
		geocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
		forecastURL: "https://api.open-meteo.com/v1/forecast",
		defaultCity: defaultCity,
	}
}

// Spec describes the tool for the model.
func (w *Weather) Spec() *Spec {
	return &Spec{
		Name:        "obtenir_meteo",
		Description: "Donne la météo.",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"ville": {Type: "string", Description: "Nom de la ville"},
			},
			Required: []string{"ville"},
		},
	}
}

// Handle resolves the city to coordinates and reads the current
// temperature.
func (w *Weather) Handle(ctx context.Context, args map[string]any) string {
	ville := StringArg(args, "ville", w.defaultCity)
	if ville == "" {
		return "Ville inconnue."
	}

	lat, lon, ok := w.geocode(ctx, ville)
	if !ok {
		return "Ville inconnue."
	}

	temp, err := w.currentTemperature(ctx, lat, lon)
	if err != nil {
		return "Erreur météo."
	}
	return fmt.Sprintf("Il fait %g°C à %s.", temp, ville)
}

func (w *Weather) geocode(ctx context.Context, ville string) (lat, lon float64, ok bool) {
	u := fmt.Sprintf("%s?name=%s&count=1&language=fr&format=json", w.geocodeURL, url.QueryEscape(ville))
	var out struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := w.getJSON(ctx, u, &out); err != nil || len(out.Results) == 0 {
		return 0, 0, false
	}
	return out.Results[0].Latitude, out.Results[0].Longitude, true
}

func (w *Weather) currentTemperature(ctx context.Context, lat, lon float64) (float64, error) {
	u := fmt.Sprintf("%s?latitude=%g&longitude=%g&current=temperature_2m", w.forecastURL, lat, lon)
	var out struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
		} `json:"current"`
	}
	if err := w.getJSON(ctx, u, &out); err != nil {
		return 0, err
	}
	return out.Current.Temperature, nil
}

func (w *Weather) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("statut %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
