package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/presencewatch/presencewatch/server/internal/config"
	"github.com/presencewatch/presencewatch/server/internal/presence"
)

type captured struct {
	mu      sync.Mutex
	bodies  []string
	headers []http.Header
}

func (c *captured) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(b))
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func TestWebhook_HTTPPayload(t *testing.T) {
	var c captured
	srv := httptest.NewServer(c.handler(http.StatusNoContent))
	defer srv.Close()
	t.Setenv("HOOK_URL", srv.URL)

	w := NewWebhook([]config.WebhookConfig{{Type: "http", URLEnv: "HOOK_URL"}})
	tr := presence.Transition{Value: "bob", Status: presence.StatusAway}
	if err := w.Publish(context.Background(), "home/presence", tr); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(c.bodies) != 1 {
		t.Fatalf("requests: got %d, want 1", len(c.bodies))
	}
	var got presence.Transition
	if err := json.Unmarshal([]byte(c.bodies[0]), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got != tr {
		t.Errorf("body: got %+v, want %+v", got, tr)
	}
	if h := c.headers[0].Get("X-Presence-Topic"); h != "home/presence" {
		t.Errorf("X-Presence-Topic: got %q", h)
	}
	if ct := c.headers[0].Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestWebhook_SlackAndTeams(t *testing.T) {
	var slack, teams captured
	s1 := httptest.NewServer(slack.handler(http.StatusOK))
	defer s1.Close()
	s2 := httptest.NewServer(teams.handler(http.StatusOK))
	defer s2.Close()
	t.Setenv("SLACK_URL", s1.URL)
	t.Setenv("TEAMS_URL", s2.URL)

	w := NewWebhook([]config.WebhookConfig{
		{Type: "slack", URLEnv: "SLACK_URL"},
		{Type: "teams", URLEnv: "TEAMS_URL"},
	})
	if err := w.Publish(context.Background(), "t", home); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(slack.bodies) != 1 || !strings.Contains(slack.bodies[0], "*alice* is HOME") {
		t.Errorf("slack body: %v", slack.bodies)
	}
	if len(teams.bodies) != 1 || !strings.Contains(teams.bodies[0], "MessageCard") {
		t.Errorf("teams body: %v", teams.bodies)
	}
}

func TestWebhook_ErrorStatus(t *testing.T) {
	var c captured
	srv := httptest.NewServer(c.handler(http.StatusBadGateway))
	defer srv.Close()
	t.Setenv("HOOK_URL", srv.URL)

	w := NewWebhook([]config.WebhookConfig{{Type: "http", URLEnv: "HOOK_URL"}})
	err := w.Publish(context.Background(), "t", home)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("error: got %v, want HTTP 502", err)
	}
}

func TestWebhook_UnsetURLSkipped(t *testing.T) {
	w := NewWebhook([]config.WebhookConfig{{Type: "http", URLEnv: "PRESENCE_TEST_UNSET_URL"}})
	if err := w.Publish(context.Background(), "t", home); err != nil {
		t.Errorf("Publish with unset URL: got %v, want nil", err)
	}
}

func TestWebhook_Unreachable(t *testing.T) {
	t.Setenv("HOOK_URL", "http://127.0.0.1:1")
	w := NewWebhook([]config.WebhookConfig{{Type: "http", URLEnv: "HOOK_URL"}})
	if err := w.Publish(context.Background(), "t", home); err == nil {
		t.Fatal("expected error for unreachable target, got nil")
	}
}
