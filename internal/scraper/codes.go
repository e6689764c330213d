// Package scraper finds new promo codes on community pages.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/normanking/enola/internal/store"
)

const (
	arknightsURL  = "https://endfield.gg/arknights-endfield-codes/"
	strinovaURL   = "https://www.pcgamesn.com/strinova/codes"
	gameArknights = "Arknights: Endfield"
	gameStrinova  = "Strinova"
)

// Code is one newly discovered promo code.
type Code struct {
	Game string
	Code string
}

// Codes scrapes the tracked games and dedups against the store.
type Codes struct {
	client       *http.Client
	arknightsURL string
	strinovaURL  string
	store        *store.Store
}

// NewCodes creates the scraper over the shared store.
func NewCodes(st *store.Store) *Codes {
	return &Codes{
		client:       &http.Client{Timeout: 10 * time.Second},
		arknightsURL: arknightsURL,
		strinovaURL:  strinovaURL,
		store:        st,
	}
}

// CheckNew scrapes every game page and returns the codes not seen
// before. A failing page is skipped so one site outage does not mute
// the other.
func (c *Codes) CheckNew(ctx context.Context) ([]Code, error) {
	var out []Code

	if codes, err := c.scrapeArknights(ctx); err == nil {
		fresh, err := c.filterNew(ctx, gameArknights, codes)
		if err != nil {
			return out, err
		}
		out = append(out, fresh...)
	}

	if codes, err := c.scrapeStrinova(ctx); err == nil {
		fresh, err := c.filterNew(ctx, gameStrinova, codes)
		if err != nil {
			return out, err
		}
		out = append(out, fresh...)
	}
	return out, nil
}

func (c *Codes) filterNew(ctx context.Context, game string, codes []string) ([]Code, error) {
	var fresh []Code
	for _, code := range codes {
		isNew, err := c.store.MarkCodeSeen(ctx, game, code)
		if err != nil {
			return fresh, err
		}
		if isNew {
			fresh = append(fresh, Code{Game: game, Code: code})
		}
	}
	return fresh, nil
}

// scrapeArknights reads the codes table: first cell of each row, first
// word, uppercase tokens only.
func (c *Codes) scrapeArknights(ctx context.Context) ([]string, error) {
	doc, err := c.fetch(ctx, c.arknightsURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return
		}
		raw := strings.TrimSpace(cell.Text())
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return
		}
		code := strings.TrimSuffix(fields[0], ":")
		if code == strings.ToUpper(code) && len(code) > 3 && !strings.Contains(code, "CODE") {
			seen[code] = true
		}
	})
	return sortedKeys(seen), nil
}

// scrapeStrinova reads bold entries in bullet lists, the shape PCGamesN
// uses for code roundups.
func (c *Codes) scrapeStrinova(ctx context.Context) ([]string, error) {
	doc, err := c.fetch(ctx, c.strinovaURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	doc.Find("li strong").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 3 && !strings.Contains(text, " ") &&
			!strings.Contains(text, "Code") && !strings.Contains(text, "Reward") {
			seen[text] = true
		}
	})
	return sortedKeys(seen), nil
}

func (c *Codes) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("statut %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
