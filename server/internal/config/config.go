package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultSweepInterval     = time.Minute
	DefaultSilenceWindow     = 10 * time.Minute
	DefaultTopic             = "presence/state"
	DefaultPublishTimeout    = 5 * time.Second
	DefaultMQTTClientID      = "presence-server"
	DefaultMQTTQoS           = 1
	DefaultConnectTimeout    = 10 * time.Second
	DefaultBroadcastInterval = 5 * time.Second
)

// Config holds the server-side configuration parsed from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Presence PresenceConfig `yaml:"presence"`
	Notify   NotifyConfig   `yaml:"notify"`
	WS       WSConfig       `yaml:"ws"`
}

// ServerConfig holds listener and authentication settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC health endpoint listens on (default 50051).
	GRPCPort int `yaml:"grpc_port" env:"PRESENCE_GRPC_PORT"`

	// HTTPPort is the port the REST API, ingestion endpoints and WebSocket hub
	// listen on (default 8080).
	HTTPPort int `yaml:"http_port" env:"PRESENCE_HTTP_PORT"`

	// Auth configures how the server authenticates ingestion and gRPC clients.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode" env:"PRESENCE_AUTH_MODE"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header (and gRPC metadata key) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// PresenceConfig selects what is tracked and how quickly absence is declared.
type PresenceConfig struct {
	// Metric is the watched metric name.
	Metric string `yaml:"metric" env:"PRESENCE_METRIC"`

	// Tag is the tag whose value identifies a tracked entity.
	Tag string `yaml:"tag" env:"PRESENCE_TAG"`

	// Values is the allow-list of tracked tag values.
	Values []string `yaml:"values" env:"PRESENCE_VALUES" envSeparator:","`

	// SweepInterval is how often stale values are checked (default 1m).
	SweepInterval time.Duration `yaml:"sweep_interval" env:"PRESENCE_SWEEP_INTERVAL"`

	// SilenceWindow is how long a value may go unseen before it is AWAY (default 10m).
	SilenceWindow time.Duration `yaml:"silence_window" env:"PRESENCE_SILENCE_WINDOW"`
}

// NotifyConfig holds the outbound transports for HOME/AWAY transitions.
type NotifyConfig struct {
	// Topic is the MQTT topic transitions are published to.
	Topic string `yaml:"topic" env:"PRESENCE_TOPIC"`

	// PublishTimeout bounds each publish call across all transports.
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	MQTT     MQTTConfig      `yaml:"mqtt"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// MQTTConfig configures the MQTT publisher. An empty Broker disables it.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker" env:"PRESENCE_MQTT_BROKER"`

	ClientID string `yaml:"client_id" env:"PRESENCE_MQTT_CLIENT_ID"`

	// QoS is the MQTT delivery level, 0..2 (default 1).
	QoS int `yaml:"qos"`

	Retained bool `yaml:"retained"`

	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Password returns the MQTT password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// WSConfig controls the WebSocket hub.
type WSConfig struct {
	// BroadcastInterval is how often the full presence snapshot is pushed (default 5s).
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults, PRESENCE_* environment variables
// override file values, and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("server config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
		},
		Presence: PresenceConfig{
			SweepInterval: DefaultSweepInterval,
			SilenceWindow: DefaultSilenceWindow,
		},
		Notify: NotifyConfig{
			Topic:          DefaultTopic,
			PublishTimeout: DefaultPublishTimeout,
			MQTT: MQTTConfig{
				ClientID:       DefaultMQTTClientID,
				QoS:            DefaultMQTTQoS,
				ConnectTimeout: DefaultConnectTimeout,
			},
		},
		WS: WSConfig{
			BroadcastInterval: DefaultBroadcastInterval,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}

	p := cfg.Presence
	if p.Metric == "" {
		return fmt.Errorf("presence.metric is required")
	}
	if p.Tag == "" {
		return fmt.Errorf("presence.tag is required")
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("presence.values must list at least one tracked value")
	}
	seen := make(map[string]bool, len(p.Values))
	for i, v := range p.Values {
		if v == "" {
			return fmt.Errorf("presence.values[%d] is empty", i)
		}
		if seen[v] {
			return fmt.Errorf("presence.values[%d] %q is listed twice", i, v)
		}
		seen[v] = true
	}
	if p.SweepInterval <= 0 {
		return fmt.Errorf("presence.sweep_interval must be positive")
	}
	if p.SilenceWindow <= 0 {
		return fmt.Errorf("presence.silence_window must be positive")
	}

	n := cfg.Notify
	if n.Topic == "" {
		return fmt.Errorf("notify.topic is required")
	}
	if n.PublishTimeout <= 0 {
		return fmt.Errorf("notify.publish_timeout must be positive")
	}
	if n.MQTT.Broker == "" && len(n.Webhooks) == 0 {
		return fmt.Errorf("notify: no transport configured: set notify.mqtt.broker or notify.webhooks")
	}
	if n.MQTT.QoS < 0 || n.MQTT.QoS > 2 {
		return fmt.Errorf("notify.mqtt.qos %d is out of range [0, 2]", n.MQTT.QoS)
	}
	if n.MQTT.ConnectTimeout < 0 {
		return fmt.Errorf("notify.mqtt.connect_timeout must not be negative")
	}
	for i, wh := range n.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q: want slack|teams|http", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env is required", i)
		}
	}

	if cfg.WS.BroadcastInterval <= 0 {
		return fmt.Errorf("ws.broadcast_interval must be positive")
	}
	return nil
}
