package ingest

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/presencewatch/presencewatch/pkg/types"
)

// ErrMalformed is wrapped by every decode error caused by the request body.
var ErrMalformed = errors.New("ingest: malformed body")

// Observer receives one observation per dispatched event.
type Observer interface {
	Observe(metricMatches bool, tagValue string, now time.Time)
}

// Dispatcher routes events to an Observer.
type Dispatcher struct {
	metric string
	tag    string
	obs    Observer
	now    func() time.Time
}

// NewDispatcher returns a Dispatcher that matches events against metric and
// reads the tracked value from tag.
func NewDispatcher(metric, tag string, obs Observer) *Dispatcher {
	return &Dispatcher{metric: metric, tag: tag, obs: obs, now: time.Now}
}

// Dispatch forwards ev to the Observer. Events without the tag are dropped.
// The observation is stamped with the receipt time, not ev.Timestamp.
func (d *Dispatcher) Dispatch(ev types.Event) {
	value, ok := ev.Tags[d.tag]
	if !ok {
		return
	}
	d.obs.Observe(ev.Metric == d.metric, value, d.now())
}

// DispatchAll dispatches every event and returns how many carried the watched
// metric.
func (d *Dispatcher) DispatchAll(events []types.Event) int {
	matched := 0
	for _, ev := range events {
		if ev.Metric == d.metric {
			matched++
		}
		d.Dispatch(ev)
	}
	return matched
}

// DecodeJSON reads KairosDB-style datapoints from r.
func DecodeJSON(r io.Reader) ([]types.Event, error) {
	series, err := types.DecodeDataPoints(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	var out []types.Event
	for _, s := range series {
		out = append(out, s.Events()...)
	}
	return out, nil
}

// DecodePrometheus reads a text exposition from r. Samples without a
// timestamp are stamped with now.
func DecodePrometheus(r io.Reader, now time.Time) ([]types.Event, error) {
	mfs, err := types.ParseExposition(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return types.FromFamilies(mfs, now), nil
}
