// Package wire implements BlockBard's peer-to-peer framing: a 4-byte
// big-endian length prefix followed by a JSON-encoded Message, matching
// the length-prefixed style used throughout the teacher's consensus
// engine.
package wire

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

const (
	MessageTypeNewBlock MessageType = "NewBlock"
	MessageTypeGetBlocks MessageType = "GetBlocks"
	MessageTypeBlocks    MessageType = "Blocks"
	MessageTypeNewPeer   MessageType = "NewPeer"
	MessageTypeGetPeers  MessageType = "GetPeers"
	MessageTypePeers     MessageType = "Peers"
)

// Message is the outer envelope for every value sent over a peer
// connection. Data is itself JSON-encoded, so a node can dispatch on
// MessageType before unmarshalling the payload into a concrete type.
type Message struct {
	MessageType MessageType `json:"message_type"`
	Data        string      `json:"data"`
}

// NewMessage JSON-encodes payload and wraps it in a Message of type
// msgType.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("wire: encode payload: %w", err)
	}
	return Message{MessageType: msgType, Data: string(encoded)}, nil
}

// EmptyMessage builds a Message of type msgType carrying the literal empty
// string as its Data, for the request types (GetBlocks, GetPeers) whose
// payload is specified as an empty string rather than an encoded value.
func EmptyMessage(msgType MessageType) Message {
	return Message{MessageType: msgType, Data: ""}
}

// Decode unmarshals m.Data into out.
func (m Message) Decode(out any) error {
	if err := json.Unmarshal([]byte(m.Data), out); err != nil {
		return fmt.Errorf("wire: decode payload for %s: %w", m.MessageType, err)
	}
	return nil
}
