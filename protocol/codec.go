package protocol

import (
	"fmt"
	"io"
)

// Codec defines the interface for encoding and decoding protocol messages.
// Implementations handle the serialization format (JSON, MessagePack)
// and message framing over the underlying stream.
type Codec interface {
	// Encode writes a message to the underlying writer
	Encode(msg *Message) error

	// Decode reads a message from the underlying reader
	Decode(msg *Message) error

	// Close closes the codec and its underlying resources
	Close() error
}

// Supported codec formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// NewCodec creates a codec based on the specified format.
// The rw parameter is the underlying stream, typically the pipes of an
// engine process.
func NewCodec(format string, rw io.ReadWriteCloser) (Codec, error) {
	switch format {
	case FormatJSON, "":
		return NewJSONCodec(rw), nil
	case FormatMsgpack:
		return NewMessagePackCodec(rw), nil
	default:
		return nil, fmt.Errorf("unsupported codec format: %s", format)
	}
}
