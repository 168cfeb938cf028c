package protocol

import (
	"encoding/json"
	"io"
)

// JSONCodec implements the Codec interface using newline-delimited JSON.
// Each message is one line holding a ["TAG","payload"] array; JSON string
// escaping keeps payload newlines from breaking the framing.
type JSONCodec struct {
	rw      io.ReadWriteCloser
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewJSONCodec creates a new JSON codec that reads from and writes to the given ReadWriteCloser.
func NewJSONCodec(rw io.ReadWriteCloser) *JSONCodec {
	enc := json.NewEncoder(rw)
	enc.SetEscapeHTML(false)

	return &JSONCodec{
		rw:      rw,
		encoder: enc,
		decoder: json.NewDecoder(rw),
	}
}

// Encode encodes a message to JSON and writes it to the underlying writer.
// The encoder adds a newline after each message.
func (c *JSONCodec) Encode(msg *Message) error {
	return c.encoder.Encode(msg)
}

// Decode reads and decodes one JSON message from the underlying reader.
func (c *JSONCodec) Decode(msg *Message) error {
	return c.decoder.Decode(msg)
}

// Close closes the underlying ReadWriteCloser.
func (c *JSONCodec) Close() error {
	return c.rw.Close()
}
