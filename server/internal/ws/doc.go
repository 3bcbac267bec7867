// Package ws implements the WebSocket hub for presence-server.
//
// Hub manages connected clients and pushes two kinds of message:
//
//	{"event": "snapshot",   "data": { /* same schema as GET /api/v1/presence */ }}
//	{"event": "transition", "data": {"value": "alice", "status": "HOME"}}
//
// A snapshot is sent on connect and on every broadcast tick. Hub implements
// presence.Notifier, so each HOME/AWAY transition is pushed as it happens.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The server mounts the hub at /ws/stream.
package ws
