package scraper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sources"
)

func TestRunnerDispatch(t *testing.T) {
	tests := []struct {
		name  string
		src   *sources.Source
		pages int
		want  models.RecordKind
	}{
		{"single listing page", sources.Books(), 1, models.KindListing},
		{"walk listing", sources.Books(), 3, models.KindPagedListing},
		{"latest post ignores pages", sources.Medium(), 4, models.KindLatestPost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := catalogue(3)
			site[mediumURL] = mediumListing(latestArticle)
			h := newHarness(t, site)
			r := NewRunner(h.pipeline, "static")

			rec, err := r.Run(context.Background(), tt.src, tt.pages)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Kind())
			assert.False(t, r.Busy())
			assert.Equal(t, "static", r.Engine())
		})
	}
}

func TestRunnerFailureHasNoRecord(t *testing.T) {
	h := newHarness(t, browser.MemoryFetcher{})
	r := NewRunner(h.pipeline, "static")

	rec, err := r.Run(context.Background(), sources.Books(), 2)
	assert.Nil(t, rec)
	assert.True(t, models.HasCode(err, models.ErrCodeNavigation))
}

func TestRunnerCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, catalogue(1))
	r := NewRunner(h.pipeline, "static")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, sources.Books(), 1)
	assert.True(t, models.HasCode(err, models.ErrCodeInternal))
	assert.Empty(t, h.launcher.browsers)
}

func TestRunnerQueuedCallHonoursDeadline(t *testing.T) {
	h := newHarness(t, catalogue(1))
	r := NewRunner(h.pipeline, "static")

	// Occupy the runner as an in-flight extraction would.
	require.NoError(t, r.sem.Acquire(context.Background(), 1))
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	rec, err := r.Run(ctx, sources.Books(), 1)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, rec)
	assert.True(t, models.HasCode(err, models.ErrCodeInternal))
	assert.Empty(t, h.launcher.browsers)
}

func TestRunnerSerializesSessions(t *testing.T) {
	h := newHarness(t, catalogue(2))
	r := NewRunner(h.pipeline, "static")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Run(context.Background(), sources.Books(), 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.launcher.browsers, 4)
	assert.True(t, h.launcher.allClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.openSessions))
}
