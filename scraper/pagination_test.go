package scraper

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sources"
)

const booksRoot = "https://books.toscrape.com/"

func catalogueURL(n int) string {
	return fmt.Sprintf("%scatalogue/page-%d.html", booksRoot, n)
}

// catalogue builds a site of n pages with two products each. Page k links to
// page k+1; the last page has no next control.
func catalogue(n int) browser.MemoryFetcher {
	site := browser.MemoryFetcher{}
	for k := 1; k <= n; k++ {
		next := ""
		if k < n {
			next = fmt.Sprintf("page-%d.html", k+1)
			if k == 1 {
				next = "catalogue/" + next
			}
		}
		doc := booksListing(next,
			product(fmt.Sprintf("Book %d-a", k), "£10.00"),
			product(fmt.Sprintf("Book %d-b", k), "£20.00"),
		)
		if k == 1 {
			site[booksRoot] = doc
		} else {
			site[catalogueURL(k)] = doc
		}
	}
	return site
}

func TestWalkStopsWhenNextControlEnds(t *testing.T) {
	h := newHarness(t, catalogue(3))
	w := NewPaginationWalker(h.pipeline)

	rec, err := w.Walk(context.Background(), sources.Books(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.PagesVisited)
	require.Len(t, rec.Items, 6)
	assert.Equal(t, "Book 1-a", rec.Items[0].Name)
	assert.Equal(t, "Book 3-b", rec.Items[5].Name)
	assert.Equal(t, models.KindPagedListing, rec.Kind())
	assert.Equal(t, "books", rec.SourceID())
	assert.Equal(t, fixedNow, rec.ScrapedAt)

	// One session for the whole walk.
	require.Len(t, h.launcher.browsers, 1)
	assert.True(t, h.launcher.allClosed())
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.pages.WithLabelValues("books")))
}

func TestWalkHonoursMaxPages(t *testing.T) {
	tests := []struct {
		maxPages int
		want     int
	}{
		{maxPages: 2, want: 2},
		{maxPages: 1, want: 1},
		{maxPages: 0, want: 1},
		{maxPages: -3, want: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d", tt.maxPages), func(t *testing.T) {
			h := newHarness(t, catalogue(4))
			rec, err := NewPaginationWalker(h.pipeline).Walk(context.Background(), sources.Books(), tt.maxPages)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.PagesVisited)
			assert.Len(t, rec.Items, 2*tt.want)
		})
	}
}

func TestWalkBrokenNextLinkStopsEarly(t *testing.T) {
	site := catalogue(3)
	delete(site, catalogueURL(2))
	h := newHarness(t, site)

	rec, err := NewPaginationWalker(h.pipeline).Walk(context.Background(), sources.Books(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PagesVisited)
	assert.Len(t, rec.Items, 2)
	assert.True(t, h.launcher.allClosed())
}

func TestWalkStopsOnRepeatedPage(t *testing.T) {
	site := browser.MemoryFetcher{
		booksRoot: booksListing("index.html",
			product("Looping Book", "£1.00"),
			product("Looping Book Two", "£2.00"),
		),
	}
	site[booksRoot+"index.html"] = site[booksRoot]
	h := newHarness(t, site)

	rec, err := NewPaginationWalker(h.pipeline).Walk(context.Background(), sources.Books(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PagesVisited)
	assert.Len(t, rec.Items, 2)
}

func TestWalkStopsOnNearRepeatedPage(t *testing.T) {
	shelf := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		shelf = append(shelf, product(fmt.Sprintf("Shelf title %d", i), "£5.00"))
	}
	// The next control reloads the shelf with only the last slot rotated.
	rotated := append(append([]string(nil), shelf[:19]...), product("Sponsored pick", "£9.99"))
	site := browser.MemoryFetcher{
		booksRoot:       booksListing("catalogue/page-2.html", shelf...),
		catalogueURL(2): booksListing("", rotated...),
	}

	tests := []struct {
		name     string
		distance int
		want     int
	}{
		{"tolerant", 6, 1},
		{"exact only", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, site)
			src := sources.Books()
			src.RepeatDistance = tt.distance

			rec, err := NewPaginationWalker(h.pipeline).Walk(context.Background(), src, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.PagesVisited)
			assert.Len(t, rec.Items, 20*tt.want)
		})
	}
}

func TestWalkEmptyLaterPageFails(t *testing.T) {
	site := catalogue(2)
	site[catalogueURL(2)] = booksListing("")
	h := newHarness(t, site)

	_, err := NewPaginationWalker(h.pipeline).Walk(context.Background(), sources.Books(), 2)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeNoRecord))
	assert.True(t, h.launcher.allClosed())
}

func TestWalkUnpaginatedSource(t *testing.T) {
	h := newHarness(t, catalogue(2))
	src := sources.Books()
	src.NextSelector = ""

	rec, err := NewPaginationWalker(h.pipeline).Walk(context.Background(), src, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PagesVisited)
}
