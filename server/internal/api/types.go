package api

import (
	"time"

	"github.com/presencewatch/presencewatch/server/internal/presence"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Metric       string `json:"metric"`
	Tag          string `json:"tag"`
	TrackedCount int    `json:"tracked_count"`
	PresentCount int    `json:"present_count"`
	Uptime       string `json:"uptime"`
}

// EntryResponse is one tracked value in GET /api/v1/presence or
// GET /api/v1/presence/{value}.
type EntryResponse struct {
	Value    string `json:"value"`
	Status   string `json:"status"`
	LastSeen string `json:"last_seen,omitempty"` // RFC3339, empty when AWAY
	Since    string `json:"since,omitempty"`     // RFC3339, empty when AWAY
}

// SnapshotResponse is the full presence table. It is also the payload of the
// WebSocket "snapshot" event.
type SnapshotResponse struct {
	Entries      []EntryResponse `json:"entries"`
	PresentCount int             `json:"present_count"`
	GeneratedAt  string          `json:"generated_at"` // RFC3339
}

// IngestResponse is the payload for POST /api/v1/datapoints and /api/v1/push.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Matched  int `json:"matched"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// Source is the read side of the presence tracker.
type Source interface {
	Snapshot() []presence.Entry
	Lookup(value string) (presence.Entry, bool)
	PresentCount() int
	TrackedCount() int
	Metric() string
	Tag() string
}

// BuildSnapshot renders the current presence table of src.
func BuildSnapshot(src Source, now time.Time) SnapshotResponse {
	entries := src.Snapshot()
	out := make([]EntryResponse, 0, len(entries))
	present := 0
	for _, e := range entries {
		if e.Status == presence.StatusHome {
			present++
		}
		out = append(out, toEntryResponse(e))
	}
	return SnapshotResponse{
		Entries:      out,
		PresentCount: present,
		GeneratedAt:  now.UTC().Format(time.RFC3339),
	}
}

func toEntryResponse(e presence.Entry) EntryResponse {
	r := EntryResponse{Value: e.Value, Status: string(e.Status)}
	if !e.LastSeen.IsZero() {
		r.LastSeen = e.LastSeen.UTC().Format(time.RFC3339)
		r.Since = e.Since.UTC().Format(time.RFC3339)
	}
	return r
}
