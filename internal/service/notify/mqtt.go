package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/dto"
	"fallwatch/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// ErrCoolingDown is returned when an alert arrives inside the cooldown window.
var ErrCoolingDown = errors.New("alert suppressed during cooldown")

type publishFunc func(topic string, payload []byte) error

// MQTTNotifier publishes fall events to a broker topic, at most once per cooldown.
type MQTTNotifier struct {
	client   mqtt.Client
	publish  publishFunc
	topic    string
	cooldown time.Duration
	now      func() time.Time
	logger   *logger.Logger

	mu       sync.Mutex
	lastSent time.Time
}

// NewMQTTNotifier connects to the configured broker in the background.
// The client reconnects on its own; alerts fail until the broker is reachable.
func NewMQTTNotifier(config *config.Config, logger *logger.Logger) *MQTTNotifier {
	opts := mqtt.NewClientOptions().AddBroker(fmt.Sprintf("tcp://%s:%d", config.MQTTHost, config.MQTTPort))
	opts.SetClientID(fmt.Sprintf("fallwatch-%d", time.Now().UnixNano()))
	if config.MQTTUser != "" && config.MQTTPassword != "" {
		opts.SetUsername(config.MQTTUser)
		opts.SetPassword(config.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("📡 Connected to MQTT broker %s:%d", config.MQTTHost, config.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warning("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	client.Connect()

	n := newNotifier(config.MQTTTopic, config.AlertCooldown, nil, logger)
	n.client = client
	n.publish = func(topic string, payload []byte) error {
		if !client.IsConnectionOpen() {
			return fmt.Errorf("not connected to broker")
		}
		token := client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	}
	return n
}

func newNotifier(topic string, cooldown time.Duration, publish publishFunc, logger *logger.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publish:  publish,
		topic:    topic,
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger,
	}
}

// Notify publishes a fall event. Non-fall events are ignored and events
// inside the cooldown window return ErrCoolingDown.
func (n *MQTTNotifier) Notify(event dto.FallEvent) error {
	if !event.FallDetected {
		return nil
	}

	n.mu.Lock()
	now := n.now()
	if !n.lastSent.IsZero() && now.Sub(n.lastSent) < n.cooldown {
		n.mu.Unlock()
		return ErrCoolingDown
	}
	n.lastSent = now
	n.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := n.publish(n.topic, payload); err != nil {
		// Let the next fall retry instead of waiting out the cooldown.
		n.mu.Lock()
		n.lastSent = time.Time{}
		n.mu.Unlock()
		return fmt.Errorf("mqtt publish failed: %w", err)
	}

	n.logger.Info("🚨 Fall alert published to %s (%.2f%%)", n.topic, event.Confidence)
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	if n.client != nil {
		n.client.Disconnect(250)
	}
}
