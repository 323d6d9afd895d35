package sources

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
)

// Build constructs the configured sources in declaration order:
// RSS feeds, pages, the IMAP mailbox, EODHD, then the demo source.
// Misconfigured entries are logged and skipped.
func Build(cfg *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) []interfaces.Source {
	var out []interfaces.Source

	for _, feed := range cfg.Sources.RSS {
		if feed.URL == "" {
			logger.Warn().Str("name", feed.Name).Msg("Skipping RSS source without url")
			continue
		}
		out = append(out, NewRSSSource(feed, NewFetcher(cfg.Sources, logger), logger))
	}

	for _, page := range cfg.Sources.Pages {
		var (
			src interfaces.Source
			err error
		)
		if page.Render {
			src, err = NewRenderedPageSource(page, cfg.Sources, logger)
		} else {
			src, err = NewPageSource(page, NewFetcher(cfg.Sources, logger), logger)
		}
		if err != nil {
			logger.Warn().Err(err).Str("name", page.Name).Msg("Skipping page source")
			continue
		}
		out = append(out, src)
	}

	if cfg.Sources.IMAP.Enabled {
		out = append(out, NewIMAPSource(cfg.Sources.IMAP, kvStorage, logger))
	}

	if cfg.Sources.EODHD.Enabled {
		eodhdCfg := cfg.Sources.EODHD
		if eodhdCfg.APIKey == "" && kvStorage != nil {
			if key, err := kvStorage.Get(context.Background(), KeyEODHDAPIKey); err == nil {
				eodhdCfg.APIKey = key
			}
		}
		if eodhdCfg.APIKey == "" {
			logger.Warn().Msg("Skipping EODHD source without api key")
		} else {
			out = append(out, NewEODHDSource(eodhdCfg, cfg.Sources, logger))
		}
	}

	if cfg.Sources.Demo.Enabled {
		out = append(out, NewDemoSource(cfg.Sources.Demo, logger))
	}

	names := make([]string, 0, len(out))
	for _, src := range out {
		names = append(names, src.Name())
	}
	logger.Info().Strs("sources", names).Msg("Sources configured")

	return out
}

// Providers returns instrument providers that are not sources themselves
func Providers(cfg *common.Config) []interfaces.InstrumentProvider {
	if len(cfg.Instruments) == 0 {
		return nil
	}
	return []interfaces.InstrumentProvider{NewStaticProvider(cfg.Instruments)}
}
