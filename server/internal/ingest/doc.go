// Package ingest turns inbound request bodies into presence observations.
//
// DecodeJSON accepts KairosDB-style datapoints, either a JSON array of series
// or a single series object. DecodePrometheus accepts a Prometheus text
// exposition. A Dispatcher compares each decoded Event against the watched
// metric, extracts the identifying tag, and calls the tracker's Observe with
// the receipt time.
package ingest
