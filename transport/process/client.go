package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/protocol"
)

// SessionEnv names the environment variable carrying the session id to the
// engine process.
const SessionEnv = "HAROLD_SESSION_ID"

const messageQueueSize = 100

// Client runs an engine as a child process and talks to it over the
// process's stdin and stdout.
type Client struct {
	codecFormat string
	sessionID   string
	log         *logger.Logger

	mu       sync.Mutex // guards cmd and codec
	sendMu   sync.Mutex // serializes writes to stdin
	cmd      *exec.Cmd
	codec    protocol.Codec
	messages chan protocol.Message
	group    errgroup.Group

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a new process client. Nothing is started until
// Connect is called.
func NewClient(codecFormat, sessionID string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		codecFormat: codecFormat,
		sessionID:   sessionID,
		log:         log,
		messages:    make(chan protocol.Message, messageQueueSize),
		closed:      make(chan struct{}),
	}
}

// Connect starts the engine command described by argv.
func (c *Client) Connect(ctx context.Context, argv []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(argv) == 0 {
		return errors.New("engine command is empty")
	}
	if c.cmd != nil {
		return errors.New("already connected")
	}
	if c.isClosed() {
		return protocol.ErrEngineDisconnected
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), SessionEnv+"="+c.sessionID)
	cmd.Stderr = &stderrLogger{log: c.log}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open engine stdout: %w", err)
	}

	codec, err := protocol.NewCodec(c.codecFormat, &pipe{Reader: stdout, WriteCloser: stdin})
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("failed to create codec: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine %q: %w", argv[0], err)
	}

	c.cmd = cmd
	c.codec = codec
	c.log.Info().Str("engine", strings.Join(argv, " ")).Int("pid", cmd.Process.Pid).Msg("engine started")

	// All reads from stdout must finish before Wait. Whether Close caused
	// the end is decided before Messages is closed, so a caller that waits
	// for Messages and then calls Close still sees why the engine went away.
	c.group.Go(func() error {
		readErr := c.readLoop()
		stopped := c.isClosed()
		close(c.messages)

		waitErr := cmd.Wait()
		if stopped {
			return nil
		}
		if waitErr != nil {
			waitErr = fmt.Errorf("engine exited: %w", waitErr)
		}
		return errors.Join(readErr, waitErr)
	})

	return nil
}

// Send encodes msg onto the engine's stdin.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	codec := c.codec
	c.mu.Unlock()

	if codec == nil || c.isClosed() {
		return fmt.Errorf("failed to send %s: %w", msg.Tag, protocol.ErrEngineDisconnected)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := codec.Encode(&msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Tag, err)
	}
	return nil
}

// Messages returns the engine's messages in the order it wrote them. The
// channel is closed when the engine exits, writes a malformed frame, or the
// client is closed.
func (c *Client) Messages() <-chan protocol.Message {
	return c.messages
}

// Close kills the engine without draining pending messages and waits for it
// to exit. It returns why the engine went away if that happened before
// Close: a malformed frame or a failed exit. It is safe to call more than
// once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		cmd, codec := c.cmd, c.codec
		c.mu.Unlock()

		if cmd == nil {
			// Never connected, so no reader will close the channel.
			close(c.messages)
			return
		}
		codec.Close()
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				c.log.Warn().Err(err).Msg("failed to kill engine")
			}
		}
	})

	return c.group.Wait()
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) readLoop() error {
	for {
		var msg protocol.Message
		if err := c.codec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) || c.isClosed() {
				return nil
			}
			c.log.Error().Err(err).Msg("failed to decode engine message")
			return fmt.Errorf("failed to decode engine message: %w", err)
		}

		select {
		case c.messages <- msg:
		case <-c.closed:
			return nil
		}
	}
}

// pipe joins the engine's stdout and stdin into one stream. Closing it
// closes stdin only; stdout is released by Wait.
type pipe struct {
	io.Reader
	io.WriteCloser
}

// stderrLogger forwards the engine's stderr to the log so it does not
// scribble over the console.
type stderrLogger struct {
	log *logger.Logger
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.log.Warn().Str("stream", "stderr").Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
