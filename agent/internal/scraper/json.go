package scraper

import (
	"context"
	"fmt"
	"io"

	"github.com/presencewatch/presencewatch/pkg/types"
)

// jsonScraper reads an endpoint that serves KairosDB-style datapoints.
type jsonScraper struct {
	base
}

// Scrape fetches and expands the datapoints.
func (s *jsonScraper) Scrape(ctx context.Context) ([]types.Event, error) {
	var events []types.Event
	err := s.get(ctx, "application/json", func(r io.Reader) error {
		series, err := types.DecodeDataPoints(r)
		if err != nil {
			return err
		}
		for _, d := range series {
			events = append(events, d.Events()...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scraper %q: %w", s.src.ID, err)
	}
	return s.finish(events), nil
}
