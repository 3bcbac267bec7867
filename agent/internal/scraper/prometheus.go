package scraper

import (
	"context"
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/presencewatch/presencewatch/pkg/types"
)

// promScraper reads a Prometheus text exposition endpoint.
type promScraper struct {
	base
}

// Scrape fetches the exposition and returns one event per counter, gauge or
// untyped sample of the configured families.
func (s *promScraper) Scrape(ctx context.Context) ([]types.Event, error) {
	var mfs map[string]*dto.MetricFamily
	err := s.get(ctx, string(expfmt.NewFormat(expfmt.TypeTextPlain)), func(r io.Reader) error {
		var err error
		mfs, err = types.ParseExposition(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scraper %q: %w", s.src.ID, err)
	}
	return s.finish(types.FromFamilies(mfs, s.now(), s.src.Metrics...)), nil
}
