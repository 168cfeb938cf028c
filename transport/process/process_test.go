package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zylisp/harold/operations"
	"github.com/zylisp/harold/protocol"
)

// helperEnv switches the test binary into engine mode when it is started
// as a child by the tests below.
const helperEnv = "HAROLD_TEST_ENGINE"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelperEngine(mode))
	}
	goleak.VerifyTestMain(m)
}

// sessionEngine greets with the session id it was started with.
type sessionEngine struct{}

func (sessionEngine) OnReady(reply operations.Replier) error {
	reply.Say(os.Getenv(SessionEnv))
	return nil
}

func (sessionEngine) OnSay(string, operations.Replier) error { return nil }

func runHelperEngine(mode string) int {
	switch mode {
	case "echo-json":
		return serveHelper(operations.NewEcho(), protocol.FormatJSON)
	case "echo-msgpack":
		return serveHelper(operations.NewEcho(), protocol.FormatMsgpack)
	case "session":
		return serveHelper(sessionEngine{}, protocol.FormatJSON)
	case "garbage":
		fmt.Fprintln(os.Stdout, `["SAY","fine"]`)
		fmt.Fprintln(os.Stdout, `{"not":"a frame"}`)
		io.Copy(io.Discard, os.Stdin)
		return 0
	case "crash":
		fmt.Fprintln(os.Stderr, "engine is broken")
		return 3
	default:
		return 2
	}
}

func serveHelper(engine operations.Engine, codec string) int {
	srv := NewServer(engine, codec, nil)
	if err := srv.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func startEngine(t *testing.T, mode, codec string) *Client {
	t.Helper()
	t.Setenv(helperEnv, mode)

	client := NewClient(codec, "session-1", nil)
	require.NoError(t, client.Connect(context.Background(), []string{os.Args[0]}))
	t.Cleanup(func() { client.Close() })
	return client
}

func receive(t *testing.T, client *Client) (protocol.Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-client.Messages():
		return msg, ok
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for engine message")
		return protocol.Message{}, false
	}
}

func TestProcessClient_Conversation(t *testing.T) {
	for _, codec := range []string{protocol.FormatJSON, protocol.FormatMsgpack} {
		t.Run(codec, func(t *testing.T) {
			client := startEngine(t, "echo-"+codec, codec)
			ctx := context.Background()

			require.NoError(t, client.Send(ctx, protocol.Ready()))
			msg, ok := receive(t, client)
			require.True(t, ok)
			assert.Equal(t, protocol.SetUserPrompt("You: "), msg)
			msg, _ = receive(t, client)
			assert.Equal(t, protocol.TagSay, msg.Tag)

			require.NoError(t, client.Send(ctx, protocol.Say("first")))
			require.NoError(t, client.Send(ctx, protocol.Say("second")))
			msg, _ = receive(t, client)
			assert.Equal(t, protocol.Say("You said: first"), msg)
			msg, _ = receive(t, client)
			assert.Equal(t, protocol.Say("You said: second"), msg)

			require.NoError(t, client.Send(ctx, protocol.Say("bye")))
			msg, _ = receive(t, client)
			assert.Equal(t, protocol.Goodbye("Goodbye!"), msg)

			require.NoError(t, client.Close())
			_, ok = receive(t, client)
			assert.False(t, ok)

			err := client.Send(ctx, protocol.Say("late"))
			assert.ErrorIs(t, err, protocol.ErrEngineDisconnected)
		})
	}
}

func TestProcessClient_SessionID(t *testing.T) {
	client := startEngine(t, "session", protocol.FormatJSON)

	require.NoError(t, client.Send(context.Background(), protocol.Ready()))
	msg, ok := receive(t, client)
	require.True(t, ok)
	assert.Equal(t, protocol.Say("session-1"), msg)
}

func TestProcessClient_MalformedFrame(t *testing.T) {
	client := startEngine(t, "garbage", protocol.FormatJSON)

	msg, ok := receive(t, client)
	require.True(t, ok)
	assert.Equal(t, protocol.Say("fine"), msg)

	_, ok = receive(t, client)
	assert.False(t, ok, "channel should close on a malformed frame")

	// The engine is still alive reading stdin; closing kills it and reports
	// the bad frame.
	assert.ErrorIs(t, client.Close(), protocol.ErrMalformedFrame)
}

func TestProcessClient_EngineExit(t *testing.T) {
	client := startEngine(t, "crash", protocol.FormatJSON)

	_, ok := receive(t, client)
	assert.False(t, ok)

	err := client.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Equal(t, err, client.Close(), "later calls report the same exit")
}

func TestProcessClient_ConnectErrors(t *testing.T) {
	client := NewClient(protocol.FormatJSON, "s", nil)
	assert.Error(t, client.Connect(context.Background(), nil))

	client = NewClient(protocol.FormatJSON, "s", nil)
	assert.Error(t, client.Connect(context.Background(), []string{"/nonexistent/harold-engine"}))
	require.NoError(t, client.Close())

	client = NewClient("xml", "s", nil)
	assert.Error(t, client.Connect(context.Background(), []string{os.Args[0]}))
	require.NoError(t, client.Close())
}

func TestProcessClient_CloseWithoutConnect(t *testing.T) {
	client := NewClient(protocol.FormatJSON, "s", nil)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, ok := <-client.Messages()
	assert.False(t, ok)
	assert.ErrorIs(t, client.Connect(context.Background(), []string{os.Args[0]}), protocol.ErrEngineDisconnected)
}
