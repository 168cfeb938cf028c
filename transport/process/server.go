package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/protocol"
)

// Server is the engine side of a process channel. It reads relay messages
// from a stream (normally its own stdin) and writes the engine's messages
// to another (normally stdout).
type Server struct {
	codec   string
	handler *operations.Handler
	log     *logger.Logger
}

// NewServer creates a stdio server for engine.
func NewServer(engine operations.Engine, codec string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		codec:   codec,
		handler: operations.NewHandler(engine),
		log:     log,
	}
}

// Serve runs until r reaches end of stream, a frame fails to decode, or ctx
// is cancelled while a message is waiting to be handled. Reading continues
// while the engine is busy, so the engine never blocks the relay's writes.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	codec, err := protocol.NewCodec(s.codec, &stdio{Reader: r, Writer: w})
	if err != nil {
		return fmt.Errorf("failed to create codec: %w", err)
	}

	var encodeMu sync.Mutex
	reply := operations.ReplierFunc(func(msg protocol.Message) {
		encodeMu.Lock()
		defer encodeMu.Unlock()

		if err := codec.Encode(&msg); err != nil {
			s.log.Error().Err(err).Stringer("msg", msg).Msg("failed to write engine message")
		}
	})

	requests := make(chan protocol.Message, messageQueueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(requests)
		for {
			var msg protocol.Message
			if err := codec.Decode(&msg); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("failed to decode relay message: %w", err)
			}

			select {
			case requests <- msg:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case msg, ok := <-requests:
				if !ok {
					return nil
				}
				if err := s.handler.Handle(msg, reply); err != nil {
					s.log.Warn().Err(err).Str("tag", string(msg.Tag)).Msg("engine failed to handle message")
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	return g.Wait()
}

// stdio joins a reader and a writer that the server does not own.
type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }
