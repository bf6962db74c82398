package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gate is a Handler whose replies are released by the test. It ignores ctx
// so it can simulate a reply that arrives after the request was stopped.
type gate struct {
	started chan Request
	release chan result
}

type result struct {
	reply Reply
	err   error
}

func newGate() *gate {
	return &gate{
		started: make(chan Request, 8),
		release: make(chan result, 8),
	}
}

func (g *gate) Send(_ context.Context, req Request) (Reply, error) {
	g.started <- req
	r := <-g.release
	return r.reply, r.err
}

func (g *gate) awaitStart(t *testing.T) Request {
	t.Helper()
	select {
	case req := <-g.started:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
		return Request{}
	}
}

func newConv(t *testing.T, h Handler, opts ...Option) *Conversation {
	t.Helper()
	c, err := New(h, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, sub *Subscription, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-sub.C:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return Event{}
		}
	}
}

func contents(msgs []message.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestNew_SeedsInitialMessages(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newConv(t, nil,
		WithInitialMessages(message.New(role.Assistant, "Hello!")),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return "fixed" }),
	)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "fixed", msgs[0].ID)
	assert.Equal(t, now, msgs[0].Timestamp)
	assert.False(t, c.IsLoading())
}

func TestNew_InvalidInitialRole(t *testing.T) {
	_, err := New(nil, WithInitialMessages(message.New(role.Role("system"), "x")))

	require.ErrorIs(t, err, message.ErrInvalidRole)
}

func TestScenario_SendThenHostReceives(t *testing.T) {
	c := newConv(t, nil, WithInitialMessages(message.New(role.Assistant, "Hello!")))

	_, err := c.SendMessage("Hi")
	require.NoError(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, role.User, msgs[1].Role)
	assert.Equal(t, "Hi", msgs[1].Content)
	assert.True(t, c.IsLoading())

	_, err = c.ReceiveMessage("Some reply")
	require.NoError(t, err)

	msgs = c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, role.Assistant, msgs[2].Role)
	assert.Equal(t, "Some reply", msgs[2].Content)
	assert.False(t, c.IsLoading())
}

func TestSendMessage_HandlerReply(t *testing.T) {
	g := newGate()
	c := newConv(t, g)
	sub := c.Events().Subscribe(16)

	sent, err := c.SendMessage("ping")
	require.NoError(t, err)

	req := g.awaitStart(t)
	assert.Equal(t, sent, req.Message)
	assert.NotEmpty(t, req.ID)

	g.release <- result{reply: Reply{Content: "pong"}}
	ev := waitFor(t, sub, EventMessageReceived)

	assert.Equal(t, req.ID, ev.RequestID)
	assert.Equal(t, role.Assistant, ev.Message.Role)
	assert.Equal(t, []string{"ping", "pong"}, contents(c.Messages()))
	assert.False(t, c.IsLoading())
}

func TestSendMessage_ToolCallReply(t *testing.T) {
	g := newGate()
	c := newConv(t, g)
	sub := c.Events().Subscribe(16)

	_, err := c.SendMessage("weather?")
	require.NoError(t, err)
	g.awaitStart(t)

	details := map[string]any{"tool": "weather"}
	g.release <- result{reply: Reply{Content: "looking up", Role: role.ToolCall, Details: details}}
	ev := waitFor(t, sub, EventMessageReceived)

	assert.Equal(t, role.ToolCall, ev.Message.Role)
	assert.True(t, ev.Message.HasDetails())
	assert.Equal(t, details, ev.Message.Details)
	assert.NotEmpty(t, ev.Message.ID)
}

func TestSendMessage_EmptyContent(t *testing.T) {
	c := newConv(t, nil)

	msg, err := c.SendMessage("")
	require.NoError(t, err)

	assert.Equal(t, role.User, msg.Role)
	require.Len(t, c.Messages(), 1)
	assert.Empty(t, c.Messages()[0].Content)
}

func TestSendMessage_BusyRejected(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.SendMessage("first")
	require.NoError(t, err)

	_, err = c.SendMessage("second")
	require.ErrorIs(t, err, ErrBusy)

	assert.Equal(t, []string{"first"}, contents(c.Messages()))
	assert.True(t, c.IsLoading())
}

func TestStop_IdleIsNoOp(t *testing.T) {
	c := newConv(t, nil)
	sub := c.Events().Subscribe(4)

	c.Stop()
	c.Stop()

	assert.False(t, c.IsLoading())
	assert.Empty(t, c.Messages())
	assert.Empty(t, sub.C)
}

func TestStop_DiscardsLateHandlerReply(t *testing.T) {
	g := newGate()
	c, err := New(g)
	require.NoError(t, err)

	_, err = c.SendMessage("a")
	require.NoError(t, err)
	g.awaitStart(t)

	c.Stop()
	assert.False(t, c.IsLoading())

	g.release <- result{reply: Reply{Content: "late"}}
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a"}, contents(c.Messages()))
	assert.False(t, c.IsLoading())
}

func TestStop_DiscardsLateResolve(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	req, ok := c.Pending()
	require.True(t, ok)

	c.Stop()

	accepted, err := c.Resolve(req.ID, Reply{Content: "late"})
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, []string{"a"}, contents(c.Messages()))
	assert.False(t, c.IsLoading())
}

func TestStop_CancelsHandlerContext(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, _ Request) (Reply, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return Reply{}, ctx.Err()
	})
	c := newConv(t, h)
	sub := c.Events().Subscribe(16)

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	<-started

	c.Stop()
	waitFor(t, sub, EventStopped)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler context was not cancelled")
	}

	require.NoError(t, c.Close())
	for len(sub.C) > 0 {
		e := <-sub.C
		assert.NotEqual(t, EventSendFailed, e.Kind)
	}
}

func TestStop_OnlyAffectsStoppedRequest(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	first, _ := c.Pending()
	c.Stop()

	_, err = c.SendMessage("b")
	require.NoError(t, err)
	second, _ := c.Pending()
	require.NotEqual(t, first.ID, second.ID)

	ok, err := c.Resolve(first.ID, Reply{Content: "for a"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, c.IsLoading())

	ok, err = c.Resolve(second.ID, Reply{Content: "for b"})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"a", "b", "for b"}, contents(c.Messages()))
	assert.False(t, c.IsLoading())
}

func TestHandlerError_EndsLoadingWithoutMessage(t *testing.T) {
	boom := errors.New("boom")
	c := newConv(t, HandlerFunc(func(context.Context, Request) (Reply, error) {
		return Reply{}, boom
	}))
	sub := c.Events().Subscribe(16)

	_, err := c.SendMessage("a")
	require.NoError(t, err)

	ev := waitFor(t, sub, EventSendFailed)
	require.ErrorIs(t, ev.Err, boom)

	waitFor(t, sub, EventLoadingChanged)
	assert.False(t, c.IsLoading())
	assert.Equal(t, []string{"a"}, contents(c.Messages()))

	_, err = c.SendMessage("retry")
	require.NoError(t, err)
}

func TestHandlerInvalidReplyRole_Fails(t *testing.T) {
	c := newConv(t, HandlerFunc(func(context.Context, Request) (Reply, error) {
		return Reply{Content: "x", Role: role.Role("narrator")}, nil
	}))
	sub := c.Events().Subscribe(16)

	_, err := c.SendMessage("a")
	require.NoError(t, err)

	ev := waitFor(t, sub, EventSendFailed)
	require.ErrorIs(t, ev.Err, message.ErrInvalidRole)
	assert.Len(t, c.Messages(), 1)
}

func TestHandlerDeferred_ResolveLater(t *testing.T) {
	reqs := make(chan Request, 1)
	c := newConv(t, HandlerFunc(func(_ context.Context, req Request) (Reply, error) {
		reqs <- req
		return Reply{}, ErrReplyDeferred
	}))

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	req := <-reqs

	require.NoError(t, c.Close())
	assert.False(t, c.IsLoading())

	ok, err := c.Resolve(req.ID, Reply{Content: "after close"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandlerDeferred_StaysLoading(t *testing.T) {
	done := make(chan struct{})
	c := newConv(t, HandlerFunc(func(context.Context, Request) (Reply, error) {
		defer close(done)
		return Reply{}, ErrReplyDeferred
	}))

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	<-done

	assert.True(t, c.IsLoading())

	req, ok := c.Pending()
	require.True(t, ok)
	accepted, err := c.Resolve(req.ID, Reply{Content: "done", Details: map[string]any{"k": 1}})
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.False(t, c.IsLoading())

	last := c.Messages()[1]
	assert.Equal(t, map[string]any{"k": 1}, last.Details)
}

func TestFail_DeferredRequest(t *testing.T) {
	c := newConv(t, nil)
	sub := c.Events().Subscribe(16)
	lost := errors.New("host went away")

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	req, ok := c.Pending()
	require.True(t, ok)

	assert.True(t, c.Fail(req.ID, lost))

	e := waitFor(t, sub, EventSendFailed)
	assert.Equal(t, req.ID, e.RequestID)
	require.ErrorIs(t, e.Err, lost)
	assert.False(t, c.IsLoading())
	assert.Equal(t, []string{"a"}, contents(c.Messages()))

	assert.False(t, c.Fail(req.ID, lost), "second fail for the same request")
	ok, err = c.Resolve(req.ID, Reply{Content: "late"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFail_StaleRequestIgnored(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	old, _ := c.Pending()
	c.Stop()

	_, err = c.SendMessage("b")
	require.NoError(t, err)

	assert.False(t, c.Fail(old.ID, errors.New("boom")))
	assert.True(t, c.IsLoading())
}

func TestReceiveMessage_ToolCallKeepsLoading(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.SendMessage("a")
	require.NoError(t, err)

	msg, err := c.ReceiveMessage("looking up", role.ToolCall)
	require.NoError(t, err)

	assert.Equal(t, role.ToolCall, msg.Role)
	assert.True(t, c.IsLoading())
}

func TestReceiveMessage_InvalidRole(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.ReceiveMessage("x", role.Role("system"))

	require.ErrorIs(t, err, message.ErrInvalidRole)
	assert.Empty(t, c.Messages())
}

func TestReceiveMessage_WhileIdle(t *testing.T) {
	c := newConv(t, nil)

	_, err := c.ReceiveMessage("unsolicited")
	require.NoError(t, err)

	assert.Equal(t, []string{"unsolicited"}, contents(c.Messages()))
	assert.False(t, c.IsLoading())
}

func TestReceiveMessage_SupersedesHandlerReply(t *testing.T) {
	g := newGate()
	c, err := New(g)
	require.NoError(t, err)

	_, err = c.SendMessage("a")
	require.NoError(t, err)
	g.awaitStart(t)

	_, err = c.ReceiveMessage("pushed")
	require.NoError(t, err)

	g.release <- result{reply: Reply{Content: "returned"}}
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a", "pushed"}, contents(c.Messages()))
}

func TestEvents_Order(t *testing.T) {
	c := newConv(t, nil)
	sub := c.Events().Subscribe(16)

	_, err := c.SendMessage("a")
	require.NoError(t, err)
	_, err = c.ReceiveMessage("b")
	require.NoError(t, err)

	var kinds []EventKind
	var loading []bool
	for range 4 {
		e := <-sub.C
		kinds = append(kinds, e.Kind)
		loading = append(loading, e.Loading)
	}

	assert.Equal(t, []EventKind{
		EventMessageSent,
		EventLoadingChanged,
		EventMessageReceived,
		EventLoadingChanged,
	}, kinds)
	assert.Equal(t, []bool{true, true, false, false}, loading)
}

func TestClose(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.SendMessage("a")
	require.ErrorIs(t, err, ErrClosed)

	_, err = c.ReceiveMessage("b")
	require.ErrorIs(t, err, ErrClosed)
}

// TestOperationSequences checks the append-only and loading invariants over
// random operation sequences against a simple model.
func TestOperationSequences(t *testing.T) {
	for seed := range uint64(20) {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed))
			c := newConv(t, nil)

			want := []string{}
			loading := false

			for i := range 50 {
				text := fmt.Sprintf("m%d", i)
				switch rng.IntN(4) {
				case 0:
					_, err := c.SendMessage(text)
					if loading {
						require.ErrorIs(t, err, ErrBusy)
						break
					}
					require.NoError(t, err)
					want = append(want, text)
					loading = true
				case 1:
					_, err := c.ReceiveMessage(text)
					require.NoError(t, err)
					want = append(want, text)
					loading = false
				case 2:
					c.Stop()
					loading = false
				case 3:
					if req, ok := c.Pending(); ok {
						accepted, err := c.Resolve(req.ID, Reply{Content: text})
						require.NoError(t, err)
						require.True(t, accepted)
						want = append(want, text)
						loading = false
					}
				}

				require.Equal(t, loading, c.IsLoading())
				require.Equal(t, want, contents(c.Messages()))
			}
		})
	}
}
