// Package config loads the presence server configuration from config.yaml.
//
// Sections:
//   - server   — grpc_port (50051), http_port (8080), auth {mode, key_env, header}
//   - presence — metric, tag, values, sweep_interval (1m), silence_window (10m)
//   - notify   — topic, publish_timeout (5s), mqtt {...}, webhooks []
//   - ws       — broadcast_interval (5s)
//
// Load(path) applies defaults, unmarshals the YAML, then applies PRESENCE_*
// environment overrides before validating. A configuration without a
// transport (neither an MQTT broker nor a webhook) is rejected.
//
// Watch(ctx, path, onChange) reloads the file on change via fsnotify.
package config
