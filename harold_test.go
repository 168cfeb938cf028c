package harold

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zylisp/harold/logger"
	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDetectTransport(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{name: "nothing set", config: Config{}, want: TransportInProcess},
		{name: "command set", config: Config{Command: []string{"engine"}}, want: TransportProcess},
		{name: "explicit wins", config: Config{Transport: TransportInProcess, Command: []string{"engine"}}, want: TransportInProcess},
		{name: "unknown kept", config: Config{Transport: "tcp"}, want: "tcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectTransport(tt.config))
		})
	}
}

func TestConnect_InProcess(t *testing.T) {
	transport, err := Connect(context.Background(), Config{Engine: operations.NewEcho()})
	require.NoError(t, err)

	require.NoError(t, transport.Send(context.Background(), protocol.Ready()))

	select {
	case msg := <-transport.Messages():
		assert.Equal(t, protocol.SetUserPrompt("You: "), msg)
	case <-time.After(time.Second):
		t.Fatal("no reply from in-process engine")
	}

	require.NoError(t, transport.Close())

	err = transport.Send(context.Background(), protocol.Say("late"))
	assert.ErrorIs(t, err, protocol.ErrEngineDisconnected)
}

// syncBuffer is a bytes.Buffer safe for a logger writing from another
// goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConnect_LoggerFromContext(t *testing.T) {
	var out syncBuffer
	ctx := logger.NewLogger("test", &out).WithContext(context.Background())

	transport, err := Connect(ctx, Config{Engine: operations.NewEcho()})
	require.NoError(t, err)
	defer transport.Close()

	// The engine refuses a relay-bound tag and the host logs it.
	require.NoError(t, transport.Send(ctx, protocol.Goodbye("wrong way")))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "engine failed to handle message")
	}, time.Second, 10*time.Millisecond)
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "in-process without engine", config: Config{}},
		{name: "process without command", config: Config{Transport: TransportProcess}},
		{name: "unknown transport", config: Config{Transport: "tcp"}},
		{name: "command does not exist", config: Config{Command: []string{"/nonexistent/harold-engine"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, err := Connect(context.Background(), tt.config)
			assert.Error(t, err)
			assert.Nil(t, transport)
		})
	}
}
