package inprocess

import (
	"context"
	"fmt"

	"github.com/zylisp/harold/protocol"
)

// Client is the relay's end of an in-process channel.
type Client struct {
	server *Server
}

// NewClient creates a client attached to server.
func NewClient(server *Server) *Client {
	return &Client{server: server}
}

// Send queues msg for the engine. It returns without waiting for a reply.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	if err := c.server.sendRequest(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Tag, err)
	}
	return nil
}

// Messages returns the engine's messages in emission order. The channel is
// closed when the server stops.
func (c *Client) Messages() <-chan protocol.Message {
	return c.server.responses
}

// Close stops the server without draining pending messages.
func (c *Client) Close() error {
	c.server.quit()
	return nil
}
