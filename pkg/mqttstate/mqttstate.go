// Package mqttstate mirrors the switch state to an MQTT broker so other
// home automation systems can follow it.
package mqttstate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/remo-switch/pkg/config"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second

	// disconnectQuiesce is in milliseconds.
	disconnectQuiesce = 1000

	payloadOn      = "on"
	payloadOff     = "off"
	payloadOnline  = "online"
	payloadOffline = "offline"
)

var ErrNotConnected = errors.New("mqtt: client not connected")

// Topics holds the topics published for one switch.
type Topics struct {
	State        string
	Availability string
}

// NewTopics builds "<prefix>/<name>/state" and "<prefix>/<name>/availability"
// with the name lowercased and spaces replaced by dashes.
func NewTopics(prefix, name string) Topics {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	base := strings.TrimSuffix(prefix, "/") + "/" + slug
	return Topics{
		State:        base + "/state",
		Availability: base + "/availability",
	}
}

func statePayload(on bool) string {
	if on {
		return payloadOn
	}
	return payloadOff
}

// Publisher publishes retained state messages. It satisfies
// remoswitch.StateListener.
type Publisher struct {
	client pahomqtt.Client
	topics Topics
	qos    byte
}

// Connect dials the broker and announces the switch as online. The broker
// marks it offline through the last will if the connection drops.
func Connect(cfg config.MQTTConfig, name string) (*Publisher, error) {
	p := newPublisher(nil, NewTopics(cfg.TopicPrefix, name), byte(cfg.QoS))

	opts := buildClientOptions(cfg, p.topics)
	opts.SetOnConnectHandler(p.announce)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("mqtt: connecting to %s: timeout after %v", cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "mqtt: connecting to %s", cfg.Broker)
	}

	return p, nil
}

func newPublisher(client pahomqtt.Client, topics Topics, qos byte) *Publisher {
	return &Publisher{
		client: client,
		topics: topics,
		qos:    qos,
	}
}

// buildClientOptions configures auto-reconnect and a retained "offline" last
// will on the availability topic.
func buildClientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(topics.Availability, payloadOffline, byte(cfg.QoS), true)
	return opts
}

// announce runs on every (re)connect.
func (p *Publisher) announce(c pahomqtt.Client) {
	c.Publish(p.topics.Availability, p.qos, true, payloadOnline)
}

func (p *Publisher) Topics() Topics {
	return p.topics
}

// Publish sends a retained state message.
func (p *Publisher) Publish(on bool) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(p.topics.State, p.qos, true, statePayload(on))
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("mqtt: publish to %s: timeout after %v", p.topics.State, publishTimeout)
	}
	return errors.Wrap(token.Error(), "mqtt: publish")
}

func (p *Publisher) StateChanged(ctx context.Context, on bool) {
	err := p.Publish(on)
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish state", "error", err, "topic", p.topics.State)
	}
}

// Close marks the switch offline and disconnects.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		token := p.client.Publish(p.topics.Availability, p.qos, true, payloadOffline)
		token.WaitTimeout(publishTimeout)
	}
	p.client.Disconnect(disconnectQuiesce)
}
