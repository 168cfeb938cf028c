package operations

import (
	"github.com/zylisp/harold/protocol"
)

// Replier is the engine's handle for emitting messages to the relay.
// Engines may call it any number of times, in any order, and may keep it to
// reply later.
type Replier interface {
	// Say asks the console to print text.
	Say(text string)

	// SetUserPrompt replaces the prompt shown before the next input.
	SetUserPrompt(prompt string)

	// Goodbye prints text and ends the session.
	Goodbye(text string)
}

// Engine is the conversational side of the channel. Its decisions are its
// own; the handler only routes the relay's messages to it.
type Engine interface {
	// OnReady is called once when the relay opens the session.
	OnReady(reply Replier) error

	// OnSay is called for every line the user submits.
	OnSay(text string, reply Replier) error
}

// Handler routes messages arriving from the relay to an Engine.
type Handler struct {
	engine Engine
}

// NewHandler creates a new handler for the given engine.
func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine: engine,
	}
}

// Handle dispatches msg based on its tag. A tag the relay is not allowed to
// send yields a *protocol.ViolationError and no reply.
func (h *Handler) Handle(msg protocol.Message, reply Replier) error {
	if !protocol.IsOutbound(msg.Tag) {
		return &protocol.ViolationError{Tag: msg.Tag}
	}

	if msg.Tag == protocol.TagReady {
		return h.engine.OnReady(reply)
	}
	return h.engine.OnSay(msg.Payload, reply)
}

// ReplierFunc adapts a message sink to the Replier interface.
type ReplierFunc func(msg protocol.Message)

// Say implements Replier.
func (f ReplierFunc) Say(text string) { f(protocol.Say(text)) }

// SetUserPrompt implements Replier.
func (f ReplierFunc) SetUserPrompt(prompt string) { f(protocol.SetUserPrompt(prompt)) }

// Goodbye implements Replier.
func (f ReplierFunc) Goodbye(text string) { f(protocol.Goodbye(text)) }
