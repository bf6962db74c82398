package hostlink

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/germanamz/chatbox/pkg/chats/role"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// Client is the host end of the link.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a Server endpoint such as ws://127.0.0.1:7331/chat.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("hostlink: dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Next blocks for the next frame from the widget.
func (c *Client) Next(ctx context.Context) (Frame, error) {
	var f Frame
	if err := wsjson.Read(ctx, c.conn, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Reply answers the request with the given id.
func (c *Client) Reply(ctx context.Context, requestID string, r conversation.Reply) error {
	return wsjson.Write(ctx, c.conn, Frame{
		Type:      FrameReply,
		RequestID: requestID,
		Content:   r.Content,
		Role:      r.Role,
		Details:   r.Details,
	})
}

// Push appends a message without tying it to a request. An empty role means
// assistant.
func (c *Client) Push(ctx context.Context, content string, r role.Role) error {
	return wsjson.Write(ctx, c.conn, Frame{Type: FrameReceive, Content: content, Role: r})
}

// Fail ends the request with the given id as failed. The widget shows the
// error and appends nothing.
func (c *Client) Fail(ctx context.Context, requestID string, cause error) error {
	return wsjson.Write(ctx, c.conn, Frame{Type: FrameFail, RequestID: requestID, Error: cause.Error()})
}

// Stop cancels the widget's outstanding request.
func (c *Client) Stop(ctx context.Context) error {
	return wsjson.Write(ctx, c.conn, Frame{Type: FrameStop})
}

// Responder answers one user message.
type Responder func(ctx context.Context, req conversation.Request) (conversation.Reply, error)

// Serve answers every message_sent frame with fn until ctx ends or the
// connection drops. A responder error fails that request and the loop
// continues.
func (c *Client) Serve(ctx context.Context, fn Responder) error {
	for {
		f, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		if f.Type != FrameMessageSent || f.Message == nil {
			continue
		}

		reply, err := fn(ctx, conversation.Request{ID: f.RequestID, Message: *f.Message})
		if errors.Is(err, conversation.ErrReplyDeferred) {
			continue
		}
		if err != nil {
			if err := c.Fail(ctx, f.RequestID, err); err != nil {
				return err
			}
			continue
		}
		if err := c.Reply(ctx, f.RequestID, reply); err != nil {
			return err
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
