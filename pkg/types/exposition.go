package types

import (
	"fmt"
	"io"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ParseExposition decodes a Prometheus text exposition from r.
// A partial result with a non-fatal parse warning is still returned.
func ParseExposition(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// FromFamilies converts counter, gauge and untyped samples into Events, one
// per sample, with labels as tags. Samples without an explicit timestamp are
// stamped with now. Families are visited in name order. When names is
// non-empty only those families are converted.
func FromFamilies(mfs map[string]*dto.MetricFamily, now time.Time, names ...string) []Event {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	keys := make([]string, 0, len(mfs))
	for k := range mfs {
		if len(want) == 0 || want[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []Event
	for _, k := range keys {
		mf := mfs[k]
		for _, m := range mf.GetMetric() {
			v, ok := sampleValue(m)
			if !ok {
				continue
			}
			ts := now
			if m.TimestampMs != nil {
				ts = time.UnixMilli(m.GetTimestampMs()).UTC()
			}
			tags := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				tags[lp.GetName()] = lp.GetValue()
			}
			out = append(out, Event{Metric: mf.GetName(), Tags: tags, Value: v, Timestamp: ts})
		}
	}
	return out
}

func sampleValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	}
	return 0, false
}
