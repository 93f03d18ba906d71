package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestLinkRanking(t *testing.T) {
	doc := mustDoc(t, `<article>
  <a href="#top">Jump to the top of this page please</a>
  <a href="/@writer">The writer's profile with a long label</a>
  <a href="/@writer/my-story?source=home">Tracked story link text here</a>
  <a href="https://levelup.gitconnected.com/x/y">A partner publication link text</a>
  <a href="/@writer/short">Tiny</a>
  <a href="/@writer/the-real-story-1a2b">The real story title</a>
  <a href="/@writer/another-story-3c4d">Another story</a>
</article>`)

	f := DefaultLinkFilter()
	f.ExcludeContains = []string{"gitconnected"}
	loc, err := BestLink(f)
	require.NoError(t, err)

	href, ok := loc(doc.Find("article"))
	require.True(t, ok)
	assert.Equal(t, "/@writer/the-real-story-1a2b", href)
}

func TestBestLinkStableForEqualText(t *testing.T) {
	doc := mustDoc(t, `<div>
  <a href="/pub/first-article">Same length text</a>
  <a href="/pub/second-article">Same length text</a>
</div>`)
	loc, err := BestLink(DefaultLinkFilter())
	require.NoError(t, err)

	href, ok := loc(doc.Find("div"))
	require.True(t, ok)
	assert.Equal(t, "/pub/first-article", href)
}

func TestBestLinkRequiresTwoSegments(t *testing.T) {
	doc := mustDoc(t, `<div><a href="/just-one-segment-here">A single segment link</a></div>`)
	loc, err := BestLink(DefaultLinkFilter())
	require.NoError(t, err)

	_, ok := loc(doc.Find("div"))
	assert.False(t, ok)
}

func TestBestLinkInvalidProfilePattern(t *testing.T) {
	_, err := BestLink(LinkFilter{ProfilePattern: "("})
	assert.Error(t, err)
}

func TestPathSegments(t *testing.T) {
	tests := []struct {
		href string
		want int
	}{
		{"/@a/b", 2},
		{"https://medium.com/pub/post", 2},
		{"//", 0},
		{"/a//b/", 2},
		{"%zz", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pathSegments(tt.href), tt.href)
	}
}
