package models

// ExtractRequest is the payload for POST /api/v1/extract.
type ExtractRequest struct {
	// Source is the ID of a registered source (e.g. "books", "medium"). Required.
	Source string `json:"source" binding:"required"`

	// MaxPages enables sequential pagination for listing sources.
	// 0 or 1 extracts only the first page. Max: 50.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=0,max=50"`

	// MaxAge in milliseconds allows serving a cached record younger than
	// this age. 0 disables the cache lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL, if set, receives an extraction.completed or
	// extraction.failed event after the request finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *ExtractRequest) Defaults() {
	if r.MaxPages < 1 {
		r.MaxPages = 1
	}
}
