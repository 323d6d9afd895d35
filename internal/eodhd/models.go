package eodhd

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Number decodes EODHD numeric fields, which arrive as numbers, numeric
// strings or "NA". Unparseable values decode as zero.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" || string(data) == "NA" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

// Float64 returns the value as a float64.
func (n Number) Float64() float64 {
	return float64(n)
}

// Quote is a (possibly delayed) real-time quote.
type Quote struct {
	Code          string `json:"code"`
	Timestamp     int64  `json:"timestamp"`
	Open          Number `json:"open"`
	High          Number `json:"high"`
	Low           Number `json:"low"`
	Close         Number `json:"close"`
	Volume        Number `json:"volume"`
	PreviousClose Number `json:"previousClose"`
	Change        Number `json:"change"`
	ChangePercent Number `json:"change_p"`
}

// Time returns the quote timestamp, zero when unknown.
func (q *Quote) Time() time.Time {
	if q.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(q.Timestamp, 0).UTC()
}

// NewsItem represents a single news article.
type NewsItem struct {
	Date      time.Time      `json:"-"`
	DateStr   string         `json:"date"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Link      string         `json:"link"`
	Symbols   []string       `json:"symbols"`
	Tags      []string       `json:"tags"`
	Sentiment *NewsSentiment `json:"sentiment,omitempty"`
}

// NewsSentiment is EODHD's own polarity score for an article.
type NewsSentiment struct {
	Polarity float64 `json:"polarity"`
	Neg      float64 `json:"neg"`
	Neu      float64 `json:"neu"`
	Pos      float64 `json:"pos"`
}

// NewsResponse is a slice of NewsItem.
type NewsResponse []NewsItem

// Fundamentals holds the parts of the fundamentals document used to profile an instrument.
type Fundamentals struct {
	General    *GeneralInfo `json:"General"`
	Highlights *Highlights  `json:"Highlights"`
}

// GeneralInfo contains general company information.
type GeneralInfo struct {
	Code        string `json:"Code"`
	Type        string `json:"Type"`
	Name        string `json:"Name"`
	Exchange    string `json:"Exchange"`
	Sector      string `json:"Sector"`
	Industry    string `json:"Industry"`
	GicSector   string `json:"GicSector"`
	GicIndustry string `json:"GicIndustry"`
	IsDelisted  bool   `json:"IsDelisted"`
}

// Highlights contains key financial highlights.
type Highlights struct {
	MarketCapitalization    Number `json:"MarketCapitalization"`
	MarketCapitalizationMln Number `json:"MarketCapitalizationMln"`
	WallStreetTargetPrice   Number `json:"WallStreetTargetPrice"`
}

// parseNewsDate accepts the timestamp formats the news endpoint returns
func parseNewsDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var _ json.Unmarshaler = (*Number)(nil)
