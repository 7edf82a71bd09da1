// Package ingest collects raw news payloads from the configured
// sources. Adapters normalize nothing; they emit loosely-typed JSON
// payloads and leave validation to the pipeline.
package ingest

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Source is one upstream provider of raw news payloads.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]json.RawMessage, error)
}

// FetchAll collects payloads from every source. A failing source is
// logged and skipped; one broken upstream never empties the batch.
func FetchAll(ctx context.Context, sources []Source, logger zerolog.Logger) []json.RawMessage {
	var payloads []json.RawMessage

	for _, source := range sources {
		items, err := source.Fetch(ctx)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("source", source.Name()).
				Msg("source fetch failed; continuing with remaining sources")
			continue
		}
		logger.Info().
			Str("source", source.Name()).
			Int("items", len(items)).
			Msg("source fetched")
		payloads = append(payloads, items...)
	}

	return payloads
}
