package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/presencewatch/presencewatch/agent/internal/config"
	"github.com/presencewatch/presencewatch/pkg/types"
)

const defaultScrapeTimeout = 10 * time.Second

// Scraper fetches one batch of events from a source.
type Scraper interface {
	Scrape(ctx context.Context) ([]types.Event, error)
}

// New returns the Scraper for src. The HTTP client is built once and reused.
func New(src config.Source) (Scraper, error) {
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", src.ID, err)
	}
	b := base{src: src, client: client, now: time.Now}
	switch src.Type {
	case config.SourcePrometheus:
		return &promScraper{base: b}, nil
	case config.SourceJSON:
		return &jsonScraper{base: b}, nil
	default:
		return nil, fmt.Errorf("scraper %q: unsupported type %q", src.ID, src.Type)
	}
}

// base carries what every scraper shares.
type base struct {
	src    config.Source
	client *http.Client
	now    func() time.Time
}

// get performs a GET against the source endpoint and passes the body to read.
func (b *base) get(ctx context.Context, accept string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.src.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return read(resp.Body)
}

// finish applies the source's metric filter and static tags.
func (b *base) finish(events []types.Event) []types.Event {
	allowed := make(map[string]bool, len(b.src.Metrics))
	for _, m := range b.src.Metrics {
		allowed[m] = true
	}

	out := events[:0]
	for _, ev := range events {
		if len(allowed) > 0 && !allowed[ev.Metric] {
			continue
		}
		if len(b.src.Tags) > 0 {
			tags := make(map[string]string, len(ev.Tags)+len(b.src.Tags))
			for k, v := range b.src.Tags {
				tags[k] = v
			}
			for k, v := range ev.Tags {
				tags[k] = v
			}
			ev.Tags = tags
		}
		out = append(out, ev)
	}
	return out
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: src.Auth,
		},
		Timeout: defaultScrapeTimeout,
	}, nil
}
