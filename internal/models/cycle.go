package models

import "time"

// CycleReport summarises one ingestion cycle. All recoverable failures
// surface here as counts rather than errors.
type CycleReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	SourcesTotal   int      `json:"sources_total"`
	SourcesFailed  int      `json:"sources_failed"`
	FailedSources  []string `json:"failed_sources,omitempty"`
	ItemsFetched   int      `json:"items_fetched"`
	ItemsMalformed int      `json:"items_malformed"`
	ItemsDuplicate int      `json:"items_duplicate"`
	ItemsPersisted int      `json:"items_persisted"`
	ItemWriteFails int      `json:"item_write_fails"`

	InstrumentsSeeded     int `json:"instruments_seeded"`
	InstrumentsDiscovered int `json:"instruments_discovered"`

	CorpusSize          int            `json:"corpus_size"`
	CategoryCounts      map[string]int `json:"category_counts"`
	SelectedInstruments []string       `json:"selected_instruments"`
	AnalysesUpserted    int            `json:"analyses_upserted"`
	AnalysisWriteFails  int            `json:"analysis_write_fails"`
}

// Duration returns the wall time of the cycle
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
