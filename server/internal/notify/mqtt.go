package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/presencewatch/presencewatch/server/internal/config"
	"github.com/presencewatch/presencewatch/server/internal/presence"
)

// disconnectQuiesce is how long Close waits, in milliseconds, for in-flight work.
const disconnectQuiesce = 250

// publisher is the subset of mqtt.Client used for publishing.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes transitions as JSON to an MQTT broker.
type MQTT struct {
	client   publisher
	qos      byte
	retained bool
	close    func()
}

// DialMQTT connects to the broker in cfg and returns a ready MQTT notifier.
// A broker that cannot be reached within cfg.ConnectTimeout is an error; the
// client reconnects on its own after the first successful connection.
func DialMQTT(cfg config.MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("notify: mqtt connection lost", "broker", cfg.Broker, "err", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			slog.Info("notify: mqtt connected", "broker", cfg.Broker)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password())
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("notify: mqtt connect %q: timed out after %v", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("notify: mqtt connect %q: %w", cfg.Broker, err)
	}

	m := newMQTT(client, cfg)
	m.close = func() { client.Disconnect(disconnectQuiesce) }
	return m, nil
}

func newMQTT(client publisher, cfg config.MQTTConfig) *MQTT {
	return &MQTT{
		client:   client,
		qos:      byte(cfg.QoS),
		retained: cfg.Retained,
	}
}

// Publish sends t to topic and waits for the broker acknowledgement implied
// by the configured QoS, or until ctx is done.
func (m *MQTT) Publish(ctx context.Context, topic string, t presence.Transition) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("mqtt: encode payload: %w", err)
	}

	tok := m.client.Publish(topic, m.qos, m.retained, body)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt publish %q: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %q: %w", topic, ctx.Err())
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.close != nil {
		m.close()
	}
}
