package models

import "time"

// Direction is the predicted movement of an instrument
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// AnalysisRecord is the derived opportunity analysis for one instrument.
// One record per instrument, overwritten every cycle the instrument is selected.
type AnalysisRecord struct {
	InstrumentID       string    `json:"instrument_id" badgerhold:"key"`
	PotentialRating    float64   `json:"potential_rating"` // [1,10]
	PredictedDirection Direction `json:"predicted_direction"`
	Confidence         float64   `json:"confidence"` // [0,1]

	BreakingCount int `json:"breaking_count"`
	PositiveCount int `json:"positive_count"`
	NegativeCount int `json:"negative_count"`
	NeutralCount  int `json:"neutral_count"`

	// Price band, both nil when no current price is known. Low <= High.
	PriceTargetLow  *float64 `json:"price_target_low,omitempty"`
	PriceTargetHigh *float64 `json:"price_target_high,omitempty"`

	EvidencePoints   []string `json:"evidence_points"` // max 5
	Summary          string   `json:"summary"`
	ShortTermOutlook string   `json:"short_term_outlook,omitempty"`
	LongTermOutlook  string   `json:"long_term_outlook,omitempty"`
	RelatedItemIDs   []string `json:"related_item_ids"`

	AnalysisDate time.Time `json:"analysis_date"`
	CreatedAt    time.Time `json:"created_at"`
}
