package sources

import (
	"time"

	"github.com/use-agent/harvest/extract"
)

// Books is the paginated product listing of books.toscrape.com.
func Books() *Source {
	return &Source{
		ID:           "books",
		Label:        "books.toscrape.com",
		Kind:         KindListing,
		BaseURL:      "https://books.toscrape.com/",
		ItemSelector: "article.product_pod",
		ListingWait:  WaitSpec{Kind: WaitNetworkIdle, Timeout: 30 * time.Second},
		Fields: Fields{
			PageTitle: []StrategySpec{
				{Mode: ModeText, Selector: "title"},
				{Mode: ModeText, Selector: "h1"},
			},
			ItemName: []StrategySpec{
				{Mode: ModeAttr, Selector: "h3 a", Attr: "title"},
				{Mode: ModeText, Selector: "h3 a"},
			},
			ItemPrice: []StrategySpec{
				{Mode: ModeText, Selector: ".price_color"},
			},
		},
		NextSelector:   ".next a",
		RepeatDistance: 6,
	}
}

// Medium is the newest post on medium.com's programming tag, with the
// response count read from the post itself.
func Medium() *Source {
	filter := extract.DefaultLinkFilter()
	filter.ExcludeContains = []string{"gitconnected"}

	return &Source{
		ID:           "medium",
		Label:        "medium.com/tag/programming",
		Kind:         KindLatestPost,
		BaseURL:      "https://medium.com/tag/programming",
		ItemSelector: "article",
		ListingWait: WaitSpec{
			Kind:     WaitSelector,
			Selector: "article h2, article h3",
			Timeout:  20 * time.Second,
		},
		SettleDelay: 3 * time.Second,
		Fields: Fields{
			Title: []StrategySpec{
				{Mode: ModeText, Selector: "h2 a", MinLen: 6},
				{Mode: ModeText, Selector: "h2", MinLen: 6},
				{Mode: ModeText, Selector: "h3 a", MinLen: 6},
				{Mode: ModeText, Selector: "h3", MinLen: 6},
			},
			Author: []StrategySpec{
				{Mode: ModeText, Selector: `a[href^="/@"]`, MinLen: 1, MaxLen: 99},
				{Mode: ModeText, Selector: `[data-testid="authorName"]`, MinLen: 1, MaxLen: 99},
				{Mode: ModeText, Selector: `a[rel="author"]`, MinLen: 1, MaxLen: 99},
				{Mode: ModeText, Selector: `a[href*="/@"]`, MinLen: 1, MaxLen: 99},
			},
			PostURL: []StrategySpec{
				{Mode: ModeAttr, Selector: "h2 a, h3 a", Attr: "href"},
				{Mode: ModeClosestLink, Selector: "h2, h3"},
				{Mode: ModeBestLink, Filter: &filter},
			},
		},
		Detail: &DetailSpec{
			NavigationTimeout: 60 * time.Second,
			SettleDelay:       10 * time.Second,
			WaitSelector:      "article",
			WaitTimeout:       20 * time.Second,
			ReadyDelay:        5 * time.Second,
			MarkerFragments:   []string{"Responses", "("},
			MarkerTimeout:     30 * time.Second,
			MarkerSettle:      5 * time.Second,
			CountSingular:     "response",
			CountPlural:       "responses",
		},
	}
}

// Builtin returns fresh copies of the bundled sources in run order.
func Builtin() []*Source {
	return []*Source{Books(), Medium()}
}
