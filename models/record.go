package models

import "time"

// Unknown is the value a field holds when no resolution strategy matched.
// It never appears in the mandatory fields of a returned record.
const Unknown = "unknown"

// RecordKind distinguishes the record shapes produced by the pipeline.
type RecordKind string

const (
	KindListing      RecordKind = "listing"
	KindPagedListing RecordKind = "paged_listing"
	KindLatestPost   RecordKind = "latest_post"
)

// Record is implemented by every record the pipeline returns.
type Record interface {
	Kind() RecordKind
	SourceID() string
}

// Item is one repeating entry of a listing page.
type Item struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Price string `json:"price" yaml:"price"`
}

// ListingRecord is the listing form of an extracted record.
type ListingRecord struct {
	SourceTitle string    `json:"sourceTitle" yaml:"sourceTitle" validate:"required"`
	Items       []Item    `json:"items" yaml:"items" validate:"min=1,dive"`
	ScrapedAt   time.Time `json:"scrapedAt" yaml:"scrapedAt" validate:"required"`
	Source      string    `json:"source" yaml:"source" validate:"required"`
}

func (r *ListingRecord) Kind() RecordKind { return KindListing }
func (r *ListingRecord) SourceID() string { return r.Source }

// PagedListingRecord accumulates listing items across sequential pages.
type PagedListingRecord struct {
	ListingRecord `yaml:",inline"`
	PagesVisited  int `json:"pagesVisited" yaml:"pagesVisited" validate:"min=1"`
}

func (r *PagedListingRecord) Kind() RecordKind { return KindPagedListing }

// LatestPostRecord is the latest-post form of an extracted record.
// PostURL and Comments are nil when they could not be determined; that is a
// valid outcome, not a failure.
type LatestPostRecord struct {
	Title     string    `json:"title" yaml:"title" validate:"required"`
	Author    string    `json:"author" yaml:"author" validate:"required"`
	PostURL   *string   `json:"postUrl" yaml:"postUrl" validate:"omitempty,url"`
	Comments  *int      `json:"comments" yaml:"comments" validate:"omitempty,min=0"`
	ScrapedAt time.Time `json:"scrapedAt" yaml:"scrapedAt" validate:"required"`
	Source    string    `json:"source" yaml:"source" validate:"required"`
}

func (r *LatestPostRecord) Kind() RecordKind { return KindLatestPost }
func (r *LatestPostRecord) SourceID() string { return r.Source }
