package sources

import (
	"context"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

// StaticProvider seeds the instruments listed under [[instruments]]
type StaticProvider struct {
	instruments []common.InstrumentConfig
}

func NewStaticProvider(instruments []common.InstrumentConfig) *StaticProvider {
	return &StaticProvider{instruments: instruments}
}

// Instruments converts the configured entries; zero market values stay unknown
func (p *StaticProvider) Instruments(ctx context.Context) ([]*models.Instrument, error) {
	out := make([]*models.Instrument, 0, len(p.instruments))
	for _, cfg := range p.instruments {
		ticker := common.ParseTicker(cfg.Identifier)
		if ticker.Code == "" {
			continue
		}

		inst := &models.Instrument{
			Identifier:  ticker.Code,
			DisplayName: cfg.DisplayName,
			Exchange:    cfg.Exchange,
			Sector:      cfg.Sector,
			Industry:    cfg.Industry,
			Provenance:  models.ProvenanceRegistered,
		}
		if inst.DisplayName == "" {
			inst.DisplayName = ticker.Code
		}
		if inst.Exchange == "" {
			inst.Exchange = ticker.Exchange
		}
		if cfg.MarketCap > 0 {
			inst.MarketCap = models.Float64Ptr(cfg.MarketCap)
		}
		if cfg.CurrentPrice > 0 {
			inst.CurrentPrice = models.Float64Ptr(cfg.CurrentPrice)
		}
		out = append(out, inst)
	}
	return out, nil
}
