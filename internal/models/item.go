package models

import "time"

// RawItem is a single ingested text unit (headline, post, snippet).
// Items are immutable once persisted.
type RawItem struct {
	ID           string    `json:"id"` // item_{uuid}, assigned on persist
	Title        string    `json:"title" validate:"required"`
	Body         string    `json:"body,omitempty"`
	CanonicalURL string    `json:"canonical_url" validate:"required,url"`
	SourceName   string    `json:"source_name"`
	PublishedAt  time.Time `json:"published_at"`
	IngestedAt   time.Time `json:"ingested_at"`
	Provenance   string    `json:"provenance"` // live or demo
}

// Text returns the title and body joined for keyword matching
func (r *RawItem) Text() string {
	if r.Body == "" {
		return r.Title
	}
	return r.Title + " " + r.Body
}

// IsDemo reports whether the item came from the synthetic demo source
func (r *RawItem) IsDemo() bool {
	return r.Provenance == ProvenanceDemo
}
