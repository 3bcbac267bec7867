// Package scraper polls configured sources and turns their output into
// types.Event values for the shipper.
//
// Two source types are supported: prometheus (a text exposition endpoint,
// prometheus.go) and json (an endpoint serving KairosDB-style datapoints,
// json.go). New(config.Source) returns the matching Scraper.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the shared
// authRoundTripper in base.go. Every scraper applies the source's metric
// filter and static tags before returning events.
package scraper
