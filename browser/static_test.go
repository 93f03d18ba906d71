package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page1 = `<html><head><title>Catalogue</title><script>var x = "Hidden";</script></head>
<body><ul><li class="item">One</li></ul>
<p>Responses (4)</p>
<ul class="pager"><li class="next"><a href="page-2.html">next</a></li></ul></body></html>`

const page2 = `<html><head><title>Catalogue 2</title></head>
<body><ul><li class="item">Two</li></ul></body></html>`

func openStatic(t *testing.T) Page {
	t.Helper()
	f := MemoryFetcher{
		"http://shop.test/page-1.html": page1,
		"http://shop.test/page-2.html": page2,
	}
	b, err := NewStaticLauncher(f).Launch(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	p, err := b.NewPage(context.Background())
	require.NoError(t, err)
	return p
}

func TestStaticPageGotoAndQuery(t *testing.T) {
	ctx := context.Background()
	p := openStatic(t)

	require.NoError(t, p.Goto(ctx, "http://shop.test/page-1.html", WaitNetworkIdle))
	assert.Equal(t, "http://shop.test/page-1.html", p.URL())

	has, err := p.Has(ctx, "li.item")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = p.Has(ctx, "article")
	require.NoError(t, err)
	assert.False(t, has)

	assert.NoError(t, p.WaitForSelector(ctx, ".next a"))
	assert.ErrorIs(t, p.WaitForSelector(ctx, "article"), ErrNotFound)

	doc, err := p.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc, "<title>Catalogue</title>")
}

func TestStaticPageWaitForText(t *testing.T) {
	ctx := context.Background()
	p := openStatic(t)
	require.NoError(t, p.Goto(ctx, "http://shop.test/page-1.html", WaitLoad))

	assert.NoError(t, p.WaitForText(ctx, "Responses", "("))
	// Script bodies are not document text.
	assert.ErrorIs(t, p.WaitForText(ctx, "Hidden"), ErrNotFound)
}

func TestStaticPageClickAndWaitFollowsLink(t *testing.T) {
	ctx := context.Background()
	p := openStatic(t)
	require.NoError(t, p.Goto(ctx, "http://shop.test/page-1.html", WaitLoad))

	require.NoError(t, p.ClickAndWait(ctx, ".next a"))
	assert.Equal(t, "http://shop.test/page-2.html", p.URL())

	has, _ := p.Has(ctx, ".next a")
	assert.False(t, has)
	assert.ErrorIs(t, p.ClickAndWait(ctx, ".next a"), ErrNotFound)
}

func TestStaticPageScriptingUnsupported(t *testing.T) {
	ctx := context.Background()
	p := openStatic(t)
	require.NoError(t, p.Goto(ctx, "http://shop.test/page-1.html", WaitLoad))

	_, err := p.Evaluate(ctx, `() => 1`)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, p.WaitForCondition(ctx, `() => true`), ErrUnsupported)

	h1, err := p.ScrollHeight(ctx)
	require.NoError(t, err)
	require.NoError(t, p.ScrollToBottom(ctx))
	h2, err := p.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestStaticPageGotoUnknownURL(t *testing.T) {
	p := openStatic(t)
	err := p.Goto(context.Background(), "http://shop.test/missing", WaitLoad)
	assert.ErrorContains(t, err, "404")
}

func TestStaticBrowserClosedRejectsPages(t *testing.T) {
	b, err := NewStaticLauncher(MemoryFetcher{}).Launch(context.Background(), LaunchOptions{})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.NewPage(context.Background())
	assert.Error(t, err)
}
