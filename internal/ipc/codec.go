package ipc

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Conn is a CBOR message stream over a reader/writer pair
type Conn struct {
	encoder *cbor.Encoder
	decoder *cbor.Decoder
	mu      sync.Mutex
}

// NewConn creates a message stream
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{
		encoder: cbor.NewEncoder(w),
		decoder: cbor.NewDecoder(r),
	}
}

// Send encodes one message. Safe for concurrent use.
func (c *Conn) Send(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.Encode(msg)
}

// Receive decodes the next message into v. Only one goroutine may receive.
func (c *Conn) Receive(v interface{}) error {
	if err := c.decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrChannelClosed
		}
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
