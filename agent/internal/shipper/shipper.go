package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/presencewatch/presencewatch/agent/internal/config"
	"github.com/presencewatch/presencewatch/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	datapointsPath = "/api/v1/datapoints"
)

// Shipper buffers events and ships them to presence-server over HTTP.
type Shipper struct {
	cfg    config.AgentConfig
	url    string
	buf    chan types.Event
	client *http.Client
	bo     *backoff
}

// New creates a Shipper for cfg.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.ServerEndpoint, "/") + datapointsPath,
		buf:    make(chan types.Event, cfg.BufferSize),
		client: &http.Client{Timeout: sendTimeout},
		bo:     newBackoff(),
	}
}

// Ship enqueues events. When the buffer is full the oldest entry is evicted.
func (s *Shipper) Ship(events ...types.Event) {
	evicted := 0
	for _, ev := range events {
		select {
		case s.buf <- ev:
			continue
		default:
		}
		select {
		case <-s.buf:
			evicted++
		default:
		}
		select {
		case s.buf <- ev:
		default:
		}
	}
	if evicted > 0 {
		slog.Warn("shipper: buffer full, evicted oldest events",
			"evicted", evicted, "buffer_cap", cap(s.buf))
	}
}

// Pending returns the number of buffered events.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run flushes the buffer every ship interval until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ShipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.flush(ctx); err != nil && ctx.Err() == nil {
			wait := s.bo.next()
			slog.Warn("shipper: send failed, will retry",
				"endpoint", s.url,
				"err", err,
				"pending", s.Pending(),
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// flush sends batches until the buffer is empty or a transient error occurs.
func (s *Shipper) flush(ctx context.Context) error {
	for {
		batch := s.take(s.cfg.BatchSize)
		if len(batch) == 0 {
			return nil
		}

		err := s.send(ctx, batch)
		switch {
		case err == nil:
			s.bo.reset()
			slog.Debug("shipper: batch delivered", "events", len(batch))
		case isPermanentError(err):
			slog.Error("shipper: server rejected batch, discarding",
				"events", len(batch), "err", err)
		default:
			s.Ship(batch...)
			return err
		}
	}
}

func (s *Shipper) take(n int) []types.Event {
	var batch []types.Event
	for len(batch) < n {
		select {
		case ev := <-s.buf:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

// statusError is a non-2xx response from the server.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d: %s", e.Code, e.Body)
}

func (s *Shipper) send(ctx context.Context, batch []types.Event) error {
	body, err := json.Marshal(types.FromEvents(batch))
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ServerAuth.Mode == "apikey" {
		req.Header.Set(s.cfg.ServerAuth.EffectiveHeader(), s.cfg.ServerAuth.Key())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}

// isPermanentError reports whether the batch itself was rejected and should
// not be retried.
func isPermanentError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.Code >= 400 && se.Code < 500
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{initial: backoffInitial, max: backoffMax, current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	d += time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
