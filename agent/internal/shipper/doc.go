// Package shipper posts scraped events to presence-server as KairosDB-style
// JSON datapoints (POST <server_endpoint>/api/v1/datapoints).
//
// Shipper.Ship() is non-blocking: events go into a bounded channel, and when
// it is full the oldest event is evicted so the newest sightings survive an
// outage.
//
// Shipper.Run() sends up to batch_size events per request on every ship
// interval. Transport errors and 5xx/408/429 responses requeue the batch and
// wait with truncated exponential backoff (1s to 60s, ±25% jitter). Other 4xx
// responses mean the batch itself was rejected and it is discarded.
package shipper
