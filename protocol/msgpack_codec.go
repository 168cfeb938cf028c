package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MessagePackCodec implements the Codec interface using MessagePack.
// Messages are written back to back as two element arrays; the format is
// self-delimiting so no extra framing is needed.
type MessagePackCodec struct {
	rw      io.ReadWriteCloser
	encoder *msgpack.Encoder
	decoder *msgpack.Decoder
}

// NewMessagePackCodec creates a new MessagePack codec.
func NewMessagePackCodec(rw io.ReadWriteCloser) *MessagePackCodec {
	return &MessagePackCodec{
		rw:      rw,
		encoder: msgpack.NewEncoder(rw),
		decoder: msgpack.NewDecoder(rw),
	}
}

// Encode writes msg as a MessagePack array.
func (c *MessagePackCodec) Encode(msg *Message) error {
	return c.encoder.Encode(msg)
}

// Decode reads the next message. A clean end of stream is reported as
// io.EOF; any other decode failure wraps ErrMalformedFrame.
func (c *MessagePackCodec) Decode(msg *Message) error {
	err := c.decoder.Decode(msg)
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
}

// Close closes the underlying ReadWriteCloser.
func (c *MessagePackCodec) Close() error {
	return c.rw.Close()
}
