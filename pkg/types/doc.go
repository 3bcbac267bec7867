// Package types defines shared Go types used by both the agent and server.
// Event is the in-memory form of one observed sample; DataPoint is the
// KairosDB-style JSON wire format the agent ships and the server ingests.
// ParseExposition and FromFamilies turn a Prometheus text exposition into
// Events.
package types
