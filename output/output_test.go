package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/harvest/models"
)

var at = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func latest() *models.LatestPostRecord {
	return &models.LatestPostRecord{
		Title:     "Notes on the Analytical Engine",
		Author:    "Ada Lovelace",
		ScrapedAt: at,
		Source:    "medium",
	}
}

func paged() *models.PagedListingRecord {
	return &models.PagedListingRecord{
		ListingRecord: models.ListingRecord{
			SourceTitle: "All products",
			Items:       []models.Item{{Name: "Sharp Objects", Price: "£47.82"}},
			ScrapedAt:   at,
			Source:      "books",
		},
		PagesVisited: 3,
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	assert.Equal(t, ".yaml", f.Extension())

	_, err = ParseFormat("xml")
	assert.ErrorContains(t, err, "unsupported")
}

func TestEncodeJSONKeepsNullOptionals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatJSON, latest()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Contains(t, got, "postUrl")
	assert.Nil(t, got["postUrl"])
	assert.Nil(t, got["comments"])
	assert.Equal(t, "Ada Lovelace", got["author"])
}

func TestEncodeYAMLInlinesPagedListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatYAML, paged()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "All products", got["sourceTitle"])
	assert.Equal(t, 3, got["pagesVisited"])
}

func TestStoreWritesRecordsAndRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := NewStore(dir, FormatJSON)

	p1, err := s.WriteRecord(paged())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "books_pages.json"), p1)

	p2, err := s.WriteRecord(latest())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "medium_results.json"), p2)

	doc := NewRunDocument(at)
	doc.Add("medium", latest())
	doc.Fail("books", &models.ErrorDetail{Code: models.ErrCodeNavigation, Message: "timed out"})
	p3, err := s.WriteRun(doc)
	require.NoError(t, err)

	data, err := os.ReadFile(p3)
	require.NoError(t, err)
	var got struct {
		Results  map[string]map[string]any    `json:"results"`
		Failures map[string]models.ErrorDetail `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Notes on the Analytical Engine", got.Results["medium"]["title"])
	assert.Equal(t, models.ErrCodeNavigation, got.Failures["books"].Code)
}

func TestRunDocumentOmitsEmptyFailures(t *testing.T) {
	var buf bytes.Buffer
	doc := NewRunDocument(at)
	doc.Add("medium", latest())
	require.NoError(t, Encode(&buf, FormatJSON, doc))
	assert.NotContains(t, buf.String(), "failures")
}
