// Package notify delivers presence transitions to external systems.
//
// Every type here implements presence.Notifier:
//
//   - MQTT publishes {"value":..,"status":..} to the configured topic.
//   - Webhook posts to Slack, Teams or generic HTTP targets.
//   - Multi fans a transition out to several notifiers and joins their errors.
//   - WithTimeout bounds each publish so a stalled transport cannot back up
//     the tracker.
//   - Traced wraps a publish in an OpenTelemetry span.
//
// Errors are returned to the caller, which logs them; nothing here retries.
package notify
