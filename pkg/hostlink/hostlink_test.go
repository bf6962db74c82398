package hostlink

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/chatbox/pkg/chats/role"
	"github.com/germanamz/chatbox/pkg/conversation"
)

type fixture struct {
	server *Server
	conv   *conversation.Conversation
	url    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	srv := NewServer()
	conv, err := conversation.New(srv)
	require.NoError(t, err)
	srv.Bind(conv)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		_ = conv.Close()
		ts.Close()
	})

	return fixture{server: srv, conv: conv, url: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

func (f fixture) connect(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, f.url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.Eventually(t, f.server.Connected, 2*time.Second, time.Millisecond)
	return c
}

func next(t *testing.T, c *Client) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f, err := c.Next(ctx)
	require.NoError(t, err)
	return f
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_SendWithoutHost(t *testing.T) {
	f := newFixture(t)
	sub := f.conv.Events().Subscribe(16)

	_, err := f.conv.SendMessage("anyone there?")
	require.NoError(t, err)

	for {
		select {
		case ev := <-sub.C:
			if ev.Kind != conversation.EventSendFailed {
				continue
			}
			require.ErrorIs(t, ev.Err, ErrNoHost)
			assert.False(t, f.conv.IsLoading())
			assert.Len(t, f.conv.Messages(), 1)
			return
		case <-time.After(2 * time.Second):
			t.Fatal("no send_failed event")
		}
	}
}

func TestServer_RoundTrip(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	sent, err := f.conv.SendMessage("ping")
	require.NoError(t, err)

	frame := next(t, c)
	require.Equal(t, FrameMessageSent, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, sent.ID, frame.Message.ID)
	assert.Equal(t, "ping", frame.Message.Content)
	assert.True(t, f.conv.IsLoading())

	require.NoError(t, c.Reply(testCtx(t), frame.RequestID, conversation.Reply{Content: "pong"}))

	frame = next(t, c)
	require.Equal(t, FrameMessageReceived, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "pong", frame.Message.Content)
	assert.Equal(t, role.Assistant, frame.Message.Role)

	assert.False(t, f.conv.IsLoading())
	require.Len(t, f.conv.Messages(), 2)
}

func TestServer_Push(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	require.NoError(t, c.Push(testCtx(t), "unsolicited", ""))

	frame := next(t, c)
	require.Equal(t, FrameMessageReceived, frame.Type)
	assert.Equal(t, "unsolicited", frame.Message.Content)
	assert.Empty(t, frame.RequestID)

	msgs := f.conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, role.Assistant, msgs[0].Role)
}

func TestServer_StopThenLateReply(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	_, err := f.conv.SendMessage("long question")
	require.NoError(t, err)
	sent := next(t, c)

	require.NoError(t, c.Stop(testCtx(t)))

	frame := next(t, c)
	require.Equal(t, FrameStopped, frame.Type)
	assert.Equal(t, sent.RequestID, frame.RequestID)
	assert.False(t, f.conv.IsLoading())

	require.NoError(t, c.Reply(testCtx(t), sent.RequestID, conversation.Reply{Content: "too late"}))
	// A push after the late reply proves the reply was processed first.
	require.NoError(t, c.Push(testCtx(t), "marker", ""))
	frame = next(t, c)
	require.Equal(t, FrameMessageReceived, frame.Type)
	assert.Equal(t, "marker", frame.Message.Content)

	msgs := f.conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "long question", msgs[0].Content)
	assert.Equal(t, "marker", msgs[1].Content)
}

func TestServer_RejectsBadFrames(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr string
	}{
		{name: "unknown type", frame: Frame{Type: "bogus"}, wantErr: `unknown frame type "bogus"`},
		{name: "invalid role", frame: Frame{Type: FrameReceive, Content: "x", Role: "system"}, wantErr: "invalid role"},
		{name: "invalid reply role", frame: Frame{Type: FrameReply, RequestID: "r1", Role: "system"}, wantErr: "invalid role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.connect(t)

			require.NoError(t, wsjson.Write(testCtx(t), c.conn, tt.frame))

			frame := next(t, c)
			require.Equal(t, FrameError, frame.Type)
			assert.Contains(t, frame.Error, tt.wantErr)
			assert.Empty(t, f.conv.Messages())
		})
	}
}

func TestClient_Serve(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Serve(ctx, func(_ context.Context, req conversation.Request) (conversation.Reply, error) {
			return conversation.Reply{Content: "echo: " + req.Message.Content}, nil
		})
	}()

	_, err := f.conv.SendMessage("hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.conv.Messages()) == 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, "echo: hello", f.conv.Messages()[1].Content)
	assert.False(t, f.conv.IsLoading())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServer_NewHostReplacesOld(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t)
	second := f.connect(t)

	_, err := first.Next(testCtx(t))
	require.Error(t, err)

	_, err = f.conv.SendMessage("who gets this?")
	require.NoError(t, err)

	frame := next(t, second)
	assert.Equal(t, FrameMessageSent, frame.Type)
}

func waitEvent(t *testing.T, sub *conversation.Subscription, kind conversation.EventKind) conversation.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return conversation.Event{}
		}
	}
}

func TestServer_HostDisconnectFailsPending(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	sub := f.conv.Events().Subscribe(16)

	_, err := f.conv.SendMessage("hello")
	require.NoError(t, err)
	sent := next(t, c)
	require.Equal(t, FrameMessageSent, sent.Type)

	require.NoError(t, c.Close())

	ev := waitEvent(t, sub, conversation.EventSendFailed)
	assert.Equal(t, sent.RequestID, ev.RequestID)
	require.ErrorIs(t, ev.Err, ErrNoHost)
	assert.False(t, f.conv.IsLoading())
	assert.Len(t, f.conv.Messages(), 1)
	assert.False(t, f.server.Connected())

	// The widget can send again; with no host it fails right away.
	_, err = f.conv.SendMessage("again")
	require.NoError(t, err)
	ev = waitEvent(t, sub, conversation.EventSendFailed)
	require.ErrorIs(t, ev.Err, ErrNoHost)
}

func TestServer_DisconnectAfterReplyKeepsIdle(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	sub := f.conv.Events().Subscribe(16)

	_, err := f.conv.SendMessage("hello")
	require.NoError(t, err)
	sent := next(t, c)
	require.NoError(t, c.Reply(testCtx(t), sent.RequestID, conversation.Reply{Content: "hi"}))
	received := next(t, c)
	require.Equal(t, FrameMessageReceived, received.Type)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return !f.server.Connected() }, 2*time.Second, time.Millisecond)

	for drained := false; !drained; {
		select {
		case ev := <-sub.C:
			assert.NotEqual(t, conversation.EventSendFailed, ev.Kind)
		default:
			drained = true
		}
	}
	assert.Len(t, f.conv.Messages(), 2)
	assert.False(t, f.conv.IsLoading())
}

func TestClient_Fail(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	sub := f.conv.Events().Subscribe(16)

	_, err := f.conv.SendMessage("hello")
	require.NoError(t, err)
	sent := next(t, c)

	require.NoError(t, c.Fail(testCtx(t), sent.RequestID, errors.New("model overloaded")))

	ev := waitEvent(t, sub, conversation.EventSendFailed)
	var hostErr *HostError
	require.ErrorAs(t, ev.Err, &hostErr)
	assert.Equal(t, "model overloaded", hostErr.Message)
	assert.False(t, f.conv.IsLoading())
	assert.Len(t, f.conv.Messages(), 1)
}

func TestClient_ServeResponderErrorFailsRequest(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t)
	sub := f.conv.Events().Subscribe(16)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = c.Serve(ctx, func(context.Context, conversation.Request) (conversation.Reply, error) {
			return conversation.Reply{}, errors.New("backend down")
		})
	}()

	_, err := f.conv.SendMessage("hello")
	require.NoError(t, err)

	ev := waitEvent(t, sub, conversation.EventSendFailed)
	assert.Contains(t, ev.Err.Error(), "backend down")
	assert.Len(t, f.conv.Messages(), 1)
	assert.False(t, f.conv.IsLoading())
}
