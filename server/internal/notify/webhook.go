package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/presencewatch/presencewatch/server/internal/config"
	"github.com/presencewatch/presencewatch/server/internal/presence"
)

const webhookTimeout = 10 * time.Second

// Webhook delivers transitions to Slack, Teams or generic HTTP endpoints.
// Targets whose URL environment variable is unset are skipped.
type Webhook struct {
	targets []config.WebhookConfig
	client  *http.Client
}

// NewWebhook creates a Webhook notifier for the given targets.
func NewWebhook(targets []config.WebhookConfig) *Webhook {
	return &Webhook{
		targets: targets,
		client:  &http.Client{Timeout: webhookTimeout},
	}
}

// Publish posts t to every target. Each target is attempted; failures are
// joined into the returned error.
func (w *Webhook) Publish(ctx context.Context, topic string, t presence.Transition) error {
	var errs []error
	for _, wh := range w.targets {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = w.sendSlack(ctx, url, t)
		case "teams":
			err = w.sendTeams(ctx, url, t)
		case "http":
			err = w.sendHTTP(ctx, url, topic, t)
		default:
			slog.Warn("notify: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", wh.Type, err))
			continue
		}
		slog.Debug("notify: webhook delivered",
			"type", wh.Type,
			"value", t.Value,
			"status", t.Status,
		)
	}
	return errors.Join(errs...)
}

func (w *Webhook) sendSlack(ctx context.Context, url string, t presence.Transition) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("%s *%s* is %s", statusEmoji(t.Status), t.Value, t.Status),
	})
	return w.post(ctx, url, body, nil)
}

func (w *Webhook) sendTeams(ctx context.Context, url string, t presence.Transition) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": statusColor(t.Status),
		"summary":    t.Value + " " + string(t.Status),
		"title":      fmt.Sprintf("Presence: %s", t.Value),
		"text":       fmt.Sprintf("%s is now %s", t.Value, t.Status),
	}
	body, _ := json.Marshal(payload)
	return w.post(ctx, url, body, nil)
}

func (w *Webhook) sendHTTP(ctx context.Context, url, topic string, t presence.Transition) error {
	body, _ := json.Marshal(t)
	return w.post(ctx, url, body, map[string]string{"X-Presence-Topic": topic})
}

func (w *Webhook) post(ctx context.Context, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func statusEmoji(s presence.Status) string {
	if s == presence.StatusHome {
		return ":house:"
	}
	return ":wave:"
}

func statusColor(s presence.Status) string {
	if s == presence.StatusHome {
		return "2EB67D"
	}
	return "FFAB40"
}
