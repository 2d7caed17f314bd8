package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/stugahq/stuga-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
)

// statusTopic carries the relay's own online/offline status, retained.
const statusTopic = "stuga/system/status"

// stateTopicPrefix is the root of the per-entity state topics.
const stateTopicPrefix = "stuga/state/"

// Relay republishes authoritative entity state changes to an MQTT broker,
// retained, so other home systems can consume them without speaking the
// hub's WebSocket protocol. It satisfies the registry's StateSink contract.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Relay struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected bool
	mu        sync.RWMutex

	logger Logger
}

// Logger defines the logging interface used by the Relay.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// statePayload is the JSON shape published per entity.
type statePayload struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Connect establishes a connection to the MQTT broker with auto-reconnect.
// The client id gains a random suffix so multiple app instances can share
// a broker.
func Connect(cfg config.MQTTConfig, logger Logger) (*Relay, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = noopLogger{}
	}

	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(statusTopic, offlinePayload(clientID, "unexpected_disconnect"), 1, true)

	r := &Relay{cfg: cfg, logger: logger}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		r.mu.Lock()
		r.connected = true
		r.mu.Unlock()
		client.Publish(statusTopic, byte(cfg.QoS), true, onlinePayload(clientID))
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		r.mu.Lock()
		r.connected = false
		r.mu.Unlock()
		logger.Warn("mqtt connection lost", "error", err)
	})

	r.client = pahomqtt.NewClient(opts)
	token := r.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()

	return r, nil
}

// RecordEntityState publishes one authoritative state change, retained, to
// stuga/state/<entity_id>. Failures are logged, never surfaced; the relay
// must not disturb the sync loop.
func (r *Relay) RecordEntityState(entityID, state string, attributes map[string]any) {
	if !r.IsConnected() {
		return
	}

	payload, err := json.Marshal(statePayload{
		EntityID:   entityID,
		State:      state,
		Attributes: attributes,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		r.logger.Error("failed to marshal state payload", "entity", entityID, "error", err)
		return
	}

	token := r.client.Publish(stateTopic(entityID), byte(r.cfg.QoS), true, payload)
	go func() {
		if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
			r.logger.Warn("state publish failed", "entity", entityID, "error", token.Error())
		}
	}()
}

// HealthCheck verifies the broker connection is alive.
func (r *Relay) HealthCheck() error {
	if !r.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (r *Relay) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected && r.client.IsConnected()
}

// Close publishes a graceful offline status and disconnects.
func (r *Relay) Close() error {
	if r.client == nil {
		return nil
	}

	if r.IsConnected() {
		token := r.client.Publish(statusTopic, byte(r.cfg.QoS), true, offlinePayload(r.cfg.ClientID, "shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	r.client.Disconnect(defaultDisconnectQuiesce)

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	return nil
}

// stateTopic builds the per-entity state topic.
func stateTopic(entityID string) string {
	return stateTopicPrefix + entityID
}

func onlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

func offlinePayload(clientID, reason string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"%s","timestamp":"%s"}`,
		clientID,
		reason,
		time.Now().UTC().Format(time.RFC3339),
	)
}
