package openrent

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefinder/internal/domain"
	"homefinder/internal/fetcher"
	"homefinder/internal/source"
)

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestProfile_BuildURL_WeeklyBounds(t *testing.T) {
	p := Profile("")

	u, err := url.Parse(p.BuildURL(domain.SearchQuery{Location: "Manchester", PropertyType: "terraced", MinPrice: 1083, MaxPrice: 1500}))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/properties-to-rent", u.Path)
	assert.Equal(t, "Manchester", q.Get("term"))
	assert.Equal(t, "250", q.Get("rentMin"))
	assert.Equal(t, "347", q.Get("rentMax"))
	assert.Equal(t, "house", q.Get("propertyType"))
	assert.Equal(t, "newest", q.Get("sort"))
}

func TestScrape_WeeklyPricesBecomeMonthly(t *testing.T) {
	page := `<html><body>
<div class="pli clearfix">
  <a href="/properties/1987654"><h2 class="listing-title">1 Bed Flat, Ancoats, M4</h2></a>
  <div class="pim"><img src="//imagescdn.openrent.co.uk/listings/1987654/o_1.jpg"></div>
  <div class="price-location">£250 per week</div>
</div>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	client := fetcher.New(fetcher.Config{Timeout: time.Second, MaxAttempts: 1}, logger())
	listings, err := New(client, srv.URL, logger()).Scrape(context.Background(), domain.SearchQuery{Location: "Manchester"})

	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "openrent-1987654", listings[0].ID)
	assert.Equal(t, source.WeeklyToMonthly(250), listings[0].Price)
	assert.Equal(t, 1083, listings[0].Price)
	assert.Equal(t, 1, *listings[0].Bedrooms)
	assert.Equal(t, Name, listings[0].Source)
}
