package inprocess

import (
	"context"
	"sync"

	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/protocol"
)

// Queue sizes for the two directions of the channel.
const (
	requestQueueSize  = 100
	responseQueueSize = 100
)

// Server hosts an engine in the same process, connected to the relay by a
// pair of FIFO queues. Each queue has exactly one writer and one reader.
type Server struct {
	handler   *operations.Handler
	requests  chan protocol.Message // relay -> engine
	responses chan protocol.Message // engine -> relay
	log       *logger.Logger

	mu       sync.RWMutex
	finished bool

	quitOnce sync.Once
	quitCh   chan struct{}
	done     chan struct{}
}

// NewServer creates a new in-process engine host.
func NewServer(engine operations.Engine, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		handler:   operations.NewHandler(engine),
		requests:  make(chan protocol.Message, requestQueueSize),
		responses: make(chan protocol.Message, responseQueueSize),
		log:       log,
		quitCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start processes relay messages until ctx is cancelled or the server is
// stopped. It blocks; call it on its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.quit()
		case <-s.quitCh:
		}
	}()

	s.processRequests()

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Stop shuts the server down and waits for the processing loop to exit
// within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.quit()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) quit() {
	s.quitOnce.Do(func() { close(s.quitCh) })
}

// processRequests feeds relay messages to the engine one at a time, in
// arrival order. The response queue is closed when the loop exits so the
// relay observes the disconnect.
func (s *Server) processRequests() {
	defer close(s.done)
	defer s.finish()

	reply := operations.ReplierFunc(s.emit)

	for {
		select {
		case <-s.quitCh:
			return
		case msg := <-s.requests:
			if err := s.handler.Handle(msg, reply); err != nil {
				s.log.Warn().Err(err).Str("tag", string(msg.Tag)).Msg("engine failed to handle message")
			}
		}
	}
}

// emit queues an engine message for the relay. Messages emitted after
// shutdown are dropped.
func (s *Server) emit(msg protocol.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.finished {
		s.log.Debug().Stringer("msg", msg).Msg("dropping engine message after shutdown")
		return
	}

	select {
	case s.responses <- msg:
	case <-s.quitCh:
	}
}

func (s *Server) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.finished = true
		close(s.responses)
	}
}

// sendRequest queues a relay message for the engine. Once the server has
// been told to quit it reports a disconnect even if the queue has room.
func (s *Server) sendRequest(ctx context.Context, msg protocol.Message) error {
	select {
	case <-s.quitCh:
		return protocol.ErrEngineDisconnected
	default:
	}

	select {
	case s.requests <- msg:
		return nil
	case <-s.quitCh:
		return protocol.ErrEngineDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}
