package harold

import (
	"context"
	"errors"
	"fmt"

	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/protocol"
	"github.com/zylisp/harold/transport/inprocess"
	"github.com/zylisp/harold/transport/process"
)

// Transport names.
const (
	TransportInProcess = "in-process"
	TransportProcess   = "process"
)

// Transport is the relay's end of a channel to an engine.
type Transport interface {
	// Send queues a message for the engine without waiting for a reply.
	Send(ctx context.Context, msg protocol.Message) error

	// Messages delivers the engine's messages in the order it produced
	// them. It is closed when the engine is gone.
	Messages() <-chan protocol.Message

	// Close tears the channel down without draining pending messages.
	Close() error
}

// Config describes how to reach the engine.
type Config struct {
	// Transport is "in-process" or "process". Empty picks "process" when
	// Command is set and "in-process" otherwise.
	Transport string

	// Command is the engine's argv for the process transport.
	Command []string

	// Codec is the wire format for the process transport: "json" or
	// "msgpack". Ignored in-process, where messages are Go values.
	Codec string

	// Engine is hosted by the in-process transport.
	Engine operations.Engine

	// SessionID is handed to a child engine in its environment.
	SessionID string

	// Logger defaults to the logger attached to the Connect context.
	Logger *logger.Logger
}

// Connect opens a channel to the engine described by config.
func Connect(ctx context.Context, config Config) (Transport, error) {
	if config.Logger == nil {
		config.Logger = logger.FromContext(ctx)
	}

	switch detectTransport(config) {
	case TransportInProcess:
		if config.Engine == nil {
			return nil, errors.New("in-process transport requires Engine")
		}
		return connectInProcess(ctx, config), nil

	case TransportProcess:
		if len(config.Command) == 0 {
			return nil, errors.New("process transport requires Command")
		}
		client := process.NewClient(config.Codec, config.SessionID, config.Logger)
		if err := client.Connect(ctx, config.Command); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown transport: %s", config.Transport)
	}
}

// detectTransport resolves an empty Transport from the rest of the config.
func detectTransport(config Config) string {
	if config.Transport != "" {
		return config.Transport
	}
	if len(config.Command) > 0 {
		return TransportProcess
	}
	return TransportInProcess
}

// inProcessTransport owns the server goroutine behind an in-process client.
type inProcessTransport struct {
	*inprocess.Client
	server *inprocess.Server
	cancel context.CancelFunc
}

func connectInProcess(ctx context.Context, config Config) *inProcessTransport {
	server := inprocess.NewServer(config.Engine, config.Logger)
	ctx, cancel := context.WithCancel(ctx)

	go server.Start(ctx)

	return &inProcessTransport{
		Client: inprocess.NewClient(server),
		server: server,
		cancel: cancel,
	}
}

// Close stops the engine host and waits for it to finish the message in
// hand.
func (t *inProcessTransport) Close() error {
	defer t.cancel()

	if err := t.server.Stop(context.Background()); err != nil {
		return fmt.Errorf("failed to stop in-process engine: %w", err)
	}
	return nil
}
