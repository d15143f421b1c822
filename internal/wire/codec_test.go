package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	msg, err := NewMessage(MessageTypeNewPeer, map[string]string{"address": "127.0.0.1:9000"})
	if err != nil {
		t.Fatalf("NewMessage returned %v", err)
	}

	var buf bytes.Buffer
	if err := Send(&buf, msg); err != nil {
		t.Fatalf("Send returned %v", err)
	}

	got, err := Receive(&buf)
	if err != nil {
		t.Fatalf("Receive returned %v", err)
	}
	if got.MessageType != msg.MessageType || got.Data != msg.Data {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestReceiveRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // declares a length far past MaxMessageSize

	_, err := Receive(&buf)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReceivePropagatesEOF(t *testing.T) {
	_, err := Receive(&bytes.Buffer{})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("error = %v, want io.EOF", err)
	}
}

func TestEmptyMessageCarriesEmptyStringData(t *testing.T) {
	for _, msgType := range []MessageType{MessageTypeGetBlocks, MessageTypeGetPeers} {
		msg := EmptyMessage(msgType)
		if msg.MessageType != msgType {
			t.Fatalf("message type = %q, want %q", msg.MessageType, msgType)
		}
		if msg.Data != "" {
			t.Fatalf("Data = %q, want empty string", msg.Data)
		}
	}
}
