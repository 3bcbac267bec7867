// Package api implements the HTTP surface of presence-server.
//
// New(opts) returns a chi router that serves:
//
//	GET  /api/v1/health           liveness plus tracked and present counts
//	GET  /api/v1/presence         every tracked value with its status
//	GET  /api/v1/presence/{value} one tracked value; 404 if not in the allow-list
//	POST /api/v1/datapoints       KairosDB JSON datapoints (API-key guarded)
//	POST /api/v1/push             Prometheus text exposition (API-key guarded)
//	GET  /metrics                 transition counters in text exposition format
//	GET  /ws/stream               WebSocket stream, when a hub is supplied
//
// JSON types are defined in types.go. Errors are {"error": "..."} bodies.
package api
