package api

import (
	"encoding/json"
	"fmt"

	"github.com/simrelay/simrelay/internal/infrastructure/mqtt"
)

// commandBridgeQoS is the subscription QoS for command topics.
// At-least-once: duplicate commands are acceptable, lost ones are not.
const commandBridgeQoS = 1

// startCommandBridge subscribes to the MQTT command topics and relays
// payloads through the connection registry, mirroring the HTTP command
// endpoints. Delivery is best-effort, same as HTTP.
func (s *Server) startCommandBridge() error {
	s.mqtt.SetLogger(s.logger)
	topics := mqtt.Topics{}

	err := s.mqtt.Subscribe(topics.AllCommands(), commandBridgeQoS, func(topic string, payload []byte) error {
		key, ok := topics.CommandKey(topic)
		if !ok {
			return nil
		}
		if !json.Valid(payload) {
			return fmt.Errorf("command on %s is not valid JSON", topic)
		}

		msg := json.RawMessage(payload)
		if key == mqtt.BroadcastKey {
			attempted := s.registry.Broadcast(msg)
			s.logger.Info("mqtt command broadcast", "connections", attempted)
			return nil
		}

		if !s.registry.Send(key, msg) {
			s.logger.Debug("mqtt command not delivered", "connection_key", key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	s.logger.Info("mqtt command bridge started", "topic", topics.AllCommands())
	return nil
}
