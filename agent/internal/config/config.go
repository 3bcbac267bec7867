package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval = 30 * time.Second
	DefaultShipInterval   = 15 * time.Second
	DefaultBufferSize     = 10000
	DefaultBatchSize      = 500
	DefaultAuthHeader     = "x-api-key"
)

// Source types understood by the scraper.
const (
	SourcePrometheus = "prometheus"
	SourceJSON       = "json"
)

// Config is the top-level agent configuration.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of presence-server, e.g. http://hub:8080.
	ServerEndpoint string `yaml:"server_endpoint" env:"PRESENCE_AGENT_SERVER_ENDPOINT"`

	// ScrapeInterval controls how often each source is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval" env:"PRESENCE_AGENT_SCRAPE_INTERVAL"`

	// ShipInterval controls how often buffered events are posted to the server.
	ShipInterval time.Duration `yaml:"ship_interval" env:"PRESENCE_AGENT_SHIP_INTERVAL"`

	// BufferSize is the maximum number of events held while the server is
	// unreachable. The oldest event is dropped when full.
	BufferSize int `yaml:"buffer_size"`

	// BatchSize caps the events sent in one request.
	BatchSize int `yaml:"batch_size"`

	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to presence-server:
	// apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Source is one scraped endpoint.
type Source struct {
	ID string `yaml:"id"`

	// Type is prometheus (text exposition) or json (KairosDB datapoints).
	Type string `yaml:"type"`

	Endpoint string `yaml:"endpoint"`

	// Metrics restricts forwarding to these metric names. Empty forwards all.
	Metrics []string `yaml:"metrics"`

	// Tags are added to every event from this source without overriding
	// tags already present.
	Tags map[string]string `yaml:"tags"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies an authentication mode.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username string `yaml:"username"`
	// PasswordEnv names the environment variable holding the basic-auth password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key resolved from the environment.
func (a AuthConfig) Key() string { return lookup(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a AuthConfig) Token() string { return lookup(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return lookup(a.PasswordEnv) }

// EffectiveHeader returns Header, or DefaultAuthHeader when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads the YAML file at path, applies defaults and PRESENCE_AGENT_*
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("agent config: parse yaml: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("agent config: parse env: %w", err)
	}
	for i := range cfg.Agent.Sources {
		if cfg.Agent.Sources[i].Type == "" {
			cfg.Agent.Sources[i].Type = SourcePrometheus
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			ShipInterval:   DefaultShipInterval,
			BufferSize:     DefaultBufferSize,
			BatchSize:      DefaultBatchSize,
		},
	}
}

func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if u, err := url.Parse(a.ServerEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("agent.server_endpoint %q must be an http(s) URL", a.ServerEndpoint)
	}
	if a.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.BatchSize <= 0 {
		return fmt.Errorf("agent.batch_size must be positive")
	}
	switch a.ServerAuth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth.mode %q unknown: want apikey|none", a.ServerAuth.Mode)
	}

	ids := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if ids[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		ids[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Type {
		case SourcePrometheus, SourceJSON:
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}
	return nil
}
