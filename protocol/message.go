package protocol

import (
	"encoding/json"
	"fmt"
)

// Tag names the meaning of a message within the fixed protocol vocabulary.
type Tag string

const (
	// TagReady opens a session. Sent once by the relay with an empty payload.
	TagReady Tag = "READY"

	// TagSay carries an utterance. The relay sends it for user lines and
	// the engine sends it for text to display.
	TagSay Tag = "SAY"

	// TagSetUserPrompt replaces the prompt shown before the next input.
	TagSetUserPrompt Tag = "SET_USER_PROMPT"

	// TagGoodbye carries the final line before the session ends.
	TagGoodbye Tag = "GOODBYE"
)

// IsOutbound reports whether tag may be sent from the relay to the engine.
func IsOutbound(tag Tag) bool {
	switch tag {
	case TagReady, TagSay:
		return true
	default:
		return false
	}
}

// IsInbound reports whether tag may be sent from the engine to the relay.
func IsInbound(tag Tag) bool {
	switch tag {
	case TagSay, TagSetUserPrompt, TagGoodbye:
		return true
	default:
		return false
	}
}

// Message is a tagged payload exchanged between the relay and the engine.
// Messages are values: they are created at send time and consumed once.
//
// On the wire a message is a two element array: [tag, payload].
type Message struct {
	_msgpack struct{} `msgpack:",as_array"`

	// Tag identifies what the message means
	Tag Tag

	// Payload is opaque text, possibly empty
	Payload string
}

// Ready returns the session-opening handshake message.
func Ready() Message {
	return Message{Tag: TagReady}
}

// Say returns a SAY message carrying text.
func Say(text string) Message {
	return Message{Tag: TagSay, Payload: text}
}

// SetUserPrompt returns a SET_USER_PROMPT message carrying prompt.
func SetUserPrompt(prompt string) Message {
	return Message{Tag: TagSetUserPrompt, Payload: prompt}
}

// Goodbye returns a GOODBYE message carrying text.
func Goodbye(text string) Message {
	return Message{Tag: TagGoodbye, Payload: text}
}

// String implements fmt.Stringer for log output.
func (m Message) String() string {
	return fmt.Sprintf("%s %q", m.Tag, m.Payload)
}

// MarshalJSON encodes the message as ["TAG","payload"].
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{string(m.Tag), m.Payload})
}

// UnmarshalJSON decodes a ["TAG","payload"] array. Anything else is a
// malformed frame.
func (m *Message) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("%w: want 2 elements, got %d", ErrMalformedFrame, len(parts))
	}

	var tag, payload string
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return fmt.Errorf("%w: tag: %v", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[1], &payload); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformedFrame, err)
	}

	m.Tag = Tag(tag)
	m.Payload = payload
	return nil
}
