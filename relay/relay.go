// Package relay connects a console session to an engine.
//
// User lines become SAY messages for the engine. Messages from the engine
// become console actions: SAY prints and re-prompts, SET_USER_PROMPT changes
// the prompt, GOODBYE prints and ends the session. Any other tag is a
// protocol violation and also ends the session.
package relay

//go:generate mockgen -source=relay.go -destination=mock/mock_relay.go -package=mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/protocol"
)

// disconnectNotice is printed when the engine goes away mid-session.
const disconnectNotice = "The engine has gone away."

// Console is the terminal side of the relay.
type Console interface {
	ReadLines(ctx context.Context) <-chan string
	Print(text string)
	SetPrompt(text string)
	RenderPrompt()
	Clear()
	Close()
	Closed() bool
	Done() <-chan struct{}
}

// Transport is the engine side of the relay. Messages must deliver the
// engine's messages in the order it produced them and be closed when the
// engine is gone.
type Transport interface {
	Send(ctx context.Context, msg protocol.Message) error
	Messages() <-chan protocol.Message
}

// Relay translates between console lines and protocol messages.
type Relay struct {
	console   Console
	transport Transport
	log       *logger.Logger
}

// New creates a relay between console and transport.
func New(console Console, transport Transport, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		console:   console,
		transport: transport,
		log:       log,
	}
}

// Start clears the screen and sends the READY handshake. It does not wait
// for the engine to answer.
func (r *Relay) Start(ctx context.Context) error {
	r.console.Clear()

	if err := r.transport.Send(ctx, protocol.Ready()); err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}
	r.log.Debug().Msg("handshake sent")
	return nil
}

// OnUserLine sends one SAY message carrying the trimmed line.
func (r *Relay) OnUserLine(ctx context.Context, text string) error {
	if err := r.transport.Send(ctx, protocol.Say(strings.TrimSpace(text))); err != nil {
		return fmt.Errorf("failed to relay user line: %w", err)
	}
	return nil
}

// OnEngineMessage performs the console action for msg. An unrecognized tag
// prints a diagnostic, closes the session and returns a
// *protocol.ViolationError.
func (r *Relay) OnEngineMessage(msg protocol.Message) error {
	r.log.Debug().Str("tag", string(msg.Tag)).Msg("engine message")

	if !protocol.IsInbound(msg.Tag) {
		r.console.Print(fmt.Sprintf("I am drunk. %s!", msg.Tag))
		r.console.Close()
		return &protocol.ViolationError{Tag: msg.Tag}
	}

	switch msg.Tag {
	case protocol.TagSay:
		r.console.Print(msg.Payload)
		r.console.RenderPrompt()

	case protocol.TagGoodbye:
		r.console.Print(msg.Payload)
		r.console.Close()

	case protocol.TagSetUserPrompt:
		r.console.SetPrompt(msg.Payload)
	}
	return nil
}

// Run performs the handshake, starts reading user lines and then relays in
// both directions until the session closes. All dispatch happens on the
// calling goroutine, one event at a time.
//
// The session closes on end of input, GOODBYE, a protocol violation, the
// engine going away or ctx cancellation. These are all normal endings and
// Run returns nil for them; it only fails if the handshake cannot be sent.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		r.console.Close()
		return err
	}

	lines := r.console.ReadLines(ctx)
	messages := r.transport.Messages()

	for !r.console.Closed() {
		select {
		case line, ok := <-lines:
			if !ok {
				r.log.Info().Msg("input closed, ending session")
				r.console.Close()
				return nil
			}
			if err := r.OnUserLine(ctx, line); err != nil {
				r.engineGone(ctx, err)
				return nil
			}

		case msg, ok := <-messages:
			if !ok {
				r.engineGone(ctx, protocol.ErrEngineDisconnected)
				return nil
			}
			if err := r.OnEngineMessage(msg); err != nil {
				r.log.Warn().Err(err).Msg("ending session")
			}

		case <-r.console.Done():
			// Closed outside the loop; the loop condition ends it.

		case <-ctx.Done():
			r.log.Info().Err(ctx.Err()).Msg("session cancelled")
			r.console.Close()
			return nil
		}
	}

	r.log.Info().Msg("session closed")
	return nil
}

// engineGone ends the session after the engine stopped answering. When ctx
// is already cancelled the engine went down with it and no notice is shown.
func (r *Relay) engineGone(ctx context.Context, err error) {
	if ctx.Err() != nil {
		r.log.Info().Err(ctx.Err()).Msg("session cancelled")
	} else {
		r.log.Error().Err(err).Msg("engine gone, ending session")
		r.console.Print(disconnectNotice)
	}
	r.console.Close()
}
