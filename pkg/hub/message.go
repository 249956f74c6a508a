// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
//
// Clients subscribe to a topic, in practice a session id, and only receive
// messages broadcast to that topic.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (e.g., synthesized speech)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Topic string
	Type  MessageType
	Data  []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Type: BinaryMessage, Data: data}
}
