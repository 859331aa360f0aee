package mqtt

import "context"

// Publisher sends payloads to an MQTT broker.
type Publisher interface {
	// Publish delivers payload on topic. Retained messages are replayed by
	// the broker to late subscribers.
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
}

// InstructionHandler receives instructions sent to a session over MQTT.
type InstructionHandler func(ctx context.Context, sessionID, text string)
