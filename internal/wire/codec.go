package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds the length prefix read off the wire: no single
// gossip message may exceed 10 MB.
const MaxMessageSize = 10_000_000

// ErrMessageTooLarge is returned by Receive when a peer's declared length
// exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("wire: message exceeds maximum size")

// Send writes msg to w as a 4-byte big-endian length prefix followed by
// its JSON encoding.
func Send(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wire: encode message: %w", err)
	}

	var lengthPrefix [4]byte
	binary.BigEndian.PutUint32(lengthPrefix[:], uint32(len(body)))

	if _, err := w.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}

// Receive reads one length-prefixed Message from r. It returns
// ErrMessageTooLarge if the declared length exceeds MaxMessageSize, and
// propagates io.EOF/io.ErrUnexpectedEOF unwrapped so callers can treat a
// mid-read disconnect as an orderly peer close.
func Receive(r io.Reader) (Message, error) {
	var lengthPrefix [4]byte
	if _, err := io.ReadFull(r, lengthPrefix[:]); err != nil {
		return Message{}, err
	}

	length := binary.BigEndian.Uint32(lengthPrefix[:])
	if length > MaxMessageSize {
		return Message{}, ErrMessageTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("wire: decode message: %w", err)
	}
	return msg, nil
}
