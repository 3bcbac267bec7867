// Package config loads and watches the presence-agent configuration file.
//
// Load(path) reads the YAML file, applies defaults (30s scrape, 15s ship,
// 10000-event buffer, 500-event batches), applies PRESENCE_AGENT_* environment
// overrides, then validates required fields and enums. Secrets are never
// stored in the file: *_env fields name the variables that hold them.
//
// Watch(ctx, path, onChange) reloads the file on change and hands the new
// Config to onChange. Invalid edits are logged and ignored.
package config
