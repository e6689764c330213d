package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/normanking/enola/internal/store"
)

const arknightsPage = `<html><body><table>
<tr><th>Code</th><th>Reward</th></tr>
<tr><td>ENDFIELD2026: actif</td><td>500 gems</td></tr>
<tr><td>CODE</td><td>nope</td></tr>
<tr><td>abc</td><td>lowercase, ignored</td></tr>
<tr><td>NEWHOPE</td><td>10 pulls</td></tr>
</table></body></html>`

const strinovaPage = `<html><body><ul>
<li><strong>STRIGIFT2026</strong> - free skin</li>
<li><strong>Code</strong> - header word, ignored</li>
<li><strong>two words</strong> - spaces, ignored</li>
<li>no bold here</li>
</ul></body></html>`

func testCodes(t *testing.T) *Codes {
	t.Helper()
	ark := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, arknightsPage)
	}))
	t.Cleanup(ark.Close)
	stri := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strinovaPage)
	}))
	t.Cleanup(stri.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "enola.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := NewCodes(st)
	c.arknightsURL = ark.URL
	c.strinovaURL = stri.URL
	return c
}

func TestCheckNewFindsCodes(t *testing.T) {
	c := testCodes(t)

	fresh, err := c.CheckNew(context.Background())
	require.NoError(t, err)

	byGame := map[string][]string{}
	for _, code := range fresh {
		byGame[code.Game] = append(byGame[code.Game], code.Code)
	}
	require.ElementsMatch(t, []string{"ENDFIELD2026", "NEWHOPE"}, byGame[gameArknights])
	require.ElementsMatch(t, []string{"STRIGIFT2026"}, byGame[gameStrinova])
}

func TestCheckNewDedupsAcrossRuns(t *testing.T) {
	c := testCodes(t)

	fresh, err := c.CheckNew(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, fresh)

	fresh, err = c.CheckNew(context.Background())
	require.NoError(t, err)
	require.Empty(t, fresh, "second run must only report new codes")
}

func TestCheckNewSurvivesOneSiteDown(t *testing.T) {
	stri := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strinovaPage)
	}))
	t.Cleanup(stri.Close)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "enola.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := NewCodes(st)
	c.arknightsURL = down.URL
	c.strinovaURL = stri.URL

	fresh, err := c.CheckNew(context.Background())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, "STRIGIFT2026", fresh[0].Code)
}
