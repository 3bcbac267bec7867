package types

import (
	"fmt"
	"time"
)

// Event is one timestamped observation: a metric name, its tag set, and a value.
type Event struct {
	Metric    string
	Tags      map[string]string
	Value     float64
	Timestamp time.Time
}

// DataPoint is one series in the KairosDB JSON ingestion format. A series
// carries either a list of [timestamp_ms, value] pairs in Datapoints or a
// single Timestamp/Value pair.
type DataPoint struct {
	Name       string            `json:"name"`
	Tags       map[string]string `json:"tags,omitempty"`
	Datapoints [][2]float64      `json:"datapoints,omitempty"`
	Timestamp  int64             `json:"timestamp,omitempty"`
	Value      float64           `json:"value,omitempty"`
}

// Validate checks the structural constraints of a series.
func (d DataPoint) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("datapoint: name is required")
	}
	if len(d.Datapoints) == 0 && d.Timestamp == 0 {
		return fmt.Errorf("datapoint %q: no datapoints or timestamp", d.Name)
	}
	return nil
}

// Events expands the series into one Event per sample.
func (d DataPoint) Events() []Event {
	if len(d.Datapoints) == 0 {
		return []Event{{
			Metric:    d.Name,
			Tags:      d.Tags,
			Value:     d.Value,
			Timestamp: time.UnixMilli(d.Timestamp).UTC(),
		}}
	}
	out := make([]Event, 0, len(d.Datapoints))
	for _, p := range d.Datapoints {
		out = append(out, Event{
			Metric:    d.Name,
			Tags:      d.Tags,
			Value:     p[1],
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
		})
	}
	return out
}

// FromEvents groups events that share a metric name and tag set into
// DataPoint series, preserving first-seen order.
func FromEvents(events []Event) []DataPoint {
	var out []DataPoint
	index := make(map[string]int)
	for _, ev := range events {
		key := seriesKey(ev)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DataPoint{Name: ev.Metric, Tags: ev.Tags})
		}
		out[i].Datapoints = append(out[i].Datapoints,
			[2]float64{float64(ev.Timestamp.UnixMilli()), ev.Value})
	}
	return out
}

func seriesKey(ev Event) string {
	key := ev.Metric
	for _, k := range sortedKeys(ev.Tags) {
		key += "\x00" + k + "=" + ev.Tags[k]
	}
	return key
}
