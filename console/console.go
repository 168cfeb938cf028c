// Package console owns the terminal session: it reads user lines, writes
// output lines, keeps the current prompt and knows when the session is
// over. It knows nothing about the engine protocol.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/zylisp/harold/logger"
)

// clearSequence moves the cursor home and erases the screen below it.
const clearSequence = "\x1b[1;1H\x1b[0J"

// LineReader is the line editor behind the adapter. *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Refresh()
	Close() error
}

// Options configures an Adapter.
type Options struct {
	// Prompt is shown until SetPrompt replaces it.
	Prompt string
	// HistoryFile persists line history when set.
	HistoryFile string
	// Terminal enables screen clearing. Off when output is not a tty.
	Terminal bool
	Log      *logger.Logger
}

// Adapter is a console session.
type Adapter struct {
	reader   LineReader
	out      io.Writer
	terminal bool
	log      *logger.Logger

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// New opens a readline session on the process's stdin and stdout.
func New(opts Options) (*Adapter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          opts.Prompt,
		HistoryFile:     opts.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open console: %w", err)
	}

	opts.Terminal = readline.IsTerminal(int(os.Stdout.Fd()))
	return NewAdapter(rl, rl.Stdout(), opts), nil
}

// NewAdapter builds an Adapter over an existing line reader. Output is
// written to out.
func NewAdapter(reader LineReader, out io.Writer, opts Options) *Adapter {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	reader.SetPrompt(opts.Prompt)

	return &Adapter{
		reader:   reader,
		out:      out,
		terminal: opts.Terminal,
		log:      log,
		done:     make(chan struct{}),
	}
}

// ReadLines returns the user's lines, trimmed, one per submitted line. The
// channel closes at end of input, on interrupt, on Close or when ctx is
// cancelled. Each call starts a new reader; call it once per session.
func (a *Adapter) ReadLines(ctx context.Context) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		for {
			line, err := a.reader.Readline()
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					a.log.Debug().Msg("end of input")
				case errors.Is(err, readline.ErrInterrupt):
					a.log.Debug().Msg("input interrupted")
				case !a.Closed():
					a.log.Warn().Err(err).Msg("failed to read line")
				}
				return
			}
			if a.Closed() {
				return
			}

			select {
			case lines <- strings.TrimSpace(line):
			case <-a.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}

// Print writes text followed by a newline.
func (a *Adapter) Print(text string) {
	if _, err := fmt.Fprintln(a.out, text); err != nil {
		a.log.Warn().Err(err).Msg("failed to write output")
	}
}

// SetPrompt replaces the prompt used the next time it is rendered.
func (a *Adapter) SetPrompt(text string) {
	a.reader.SetPrompt(text)
}

// RenderPrompt shows the current prompt again without consuming input.
func (a *Adapter) RenderPrompt() {
	if a.Closed() {
		return
	}
	a.reader.Refresh()
}

// Clear erases the screen. It does nothing when output is not a terminal.
func (a *Adapter) Clear() {
	if !a.terminal {
		return
	}
	if _, err := io.WriteString(a.out, clearSequence); err != nil {
		a.log.Warn().Err(err).Msg("failed to clear screen")
	}
}

// Close ends the session: no further input is read and Done is closed.
// Calls after the first do nothing.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		if err := a.reader.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close line reader")
		}
		close(a.done)
	})
}

// Closed reports whether Close has been called.
func (a *Adapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Done is closed once the session has ended.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}
