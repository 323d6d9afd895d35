package models

import "time"

// Provenance values tag where an instrument or item came from
const (
	ProvenanceLive           = "live"
	ProvenanceRegistered     = "registered"
	ProvenanceAutoDiscovered = "auto-discovered"
	ProvenanceDemo           = "demo"
)

// Instrument represents a tradable entity identified by a short uppercase ticker
type Instrument struct {
	// Identity
	Identifier  string `json:"identifier" badgerhold:"key"` // ACME, 1-5 uppercase letters
	DisplayName string `json:"display_name"`
	Exchange    string `json:"exchange,omitempty"`

	// Classification (used by the category fallback table)
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`

	// Last known market data, nil when unknown
	MarketCap          *float64 `json:"market_cap,omitempty"`
	CurrentPrice       *float64 `json:"current_price,omitempty"`
	PreviousClose      *float64 `json:"previous_close,omitempty"`
	PriceChangePercent *float64 `json:"price_change_percent,omitempty"`

	Provenance string    `json:"provenance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasPrice reports whether a usable current price is known
func (i *Instrument) HasPrice() bool {
	return i != nil && i.CurrentPrice != nil && *i.CurrentPrice > 0
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
