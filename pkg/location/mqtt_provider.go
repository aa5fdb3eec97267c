package location

import (
	"errors"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/tourguard/geofence-agent/internal/ingest"
)

// mqttSubscriber is the slice of the MQTT client the provider needs.
type mqttSubscriber interface {
	Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token
	Unsubscribe(topics ...string) MQTT.Token
}

// MQTTFixProvider receives fixes published by a companion device (typically
// the tourist's phone) on an MQTT topic and serves the most recent one.
type MQTTFixProvider struct {
	client mqttSubscriber
	topic  string

	mu     sync.Mutex
	latest *Fix
}

// NewMQTTFixProvider subscribes to the fix topic and returns the provider.
func NewMQTTFixProvider(client mqttSubscriber, topic string, qos byte) (*MQTTFixProvider, error) {
	p := &MQTTFixProvider{
		client: client,
		topic:  topic,
	}

	token := client.Subscribe(topic, qos, p.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return p, nil
}

// handleMessage normalizes one companion-app report through the ingest
// parser, which tolerates the upstream coordinate key variants and rejects
// unusable coordinates instead of caching a zero fix.
func (p *MQTTFixProvider) handleMessage(_ MQTT.Client, msg MQTT.Message) {
	parsed, err := ingest.ParseLocationFix(msg.Payload())
	if err != nil {
		return
	}

	fix := Fix{
		Latitude:  parsed.Latitude,
		Longitude: parsed.Longitude,
		AccuracyM: parsed.AccuracyM,
		Timestamp: parsed.Timestamp,
	}

	p.mu.Lock()
	p.latest = &fix
	p.mu.Unlock()
}

// GetFix returns the most recent received fix, or an error when none has
// arrived yet.
func (p *MQTTFixProvider) GetFix() (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.latest == nil {
		return Fix{}, errors.New("no fix received yet")
	}
	return *p.latest, nil
}

// Close unsubscribes from the fix topic.
func (p *MQTTFixProvider) Close() error {
	token := p.client.Unsubscribe(p.topic)
	token.Wait()
	return token.Error()
}
