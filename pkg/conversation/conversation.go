package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/germanamz/chatbox/pkg/chats/chat"
	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
)

var (
	// ErrBusy is returned by SendMessage while a previous send is still
	// awaiting its reply.
	ErrBusy = errors.New("conversation: a send is already awaiting its reply")

	// ErrClosed is returned by operations on a closed Conversation.
	ErrClosed = errors.New("conversation: closed")
)

// Option configures a Conversation.
type Option func(*Conversation)

// WithInitialMessages seeds the conversation. Messages without an ID or
// timestamp get one at construction.
func WithInitialMessages(msgs ...message.Message) Option {
	return func(c *Conversation) {
		c.initial = append(c.initial, msgs...)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Conversation) { c.log = l }
}

// WithClock overrides time.Now for message timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// WithEventBus publishes events on b instead of a private bus.
func WithEventBus(b *EventBus) Option {
	return func(c *Conversation) { c.events = b }
}

// WithIDGenerator overrides the uuid generator used for message and request IDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *Conversation) { c.newID = fn }
}

type pending struct {
	req    Request
	cancel context.CancelFunc
}

// Conversation is the state of one widget instance. It is safe for
// concurrent use.
type Conversation struct {
	handler Handler
	chat    *chat.Chat
	events  *EventBus
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
	initial []message.Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending *pending
	closed  bool
}

// New creates a Conversation backed by h. A nil handler is allowed: every
// send then waits for the host to call Resolve or ReceiveMessage.
func New(h Handler, opts ...Option) (*Conversation, error) {
	c := &Conversation{
		handler: h,
		log:     zerolog.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = NewEventBus()
	}

	seed := make([]message.Message, len(c.initial))
	for i, m := range c.initial {
		seed[i] = c.stamp(m)
	}

	ch, err := chat.New(seed...)
	if err != nil {
		return nil, fmt.Errorf("conversation: initial messages: %w", err)
	}
	c.chat = ch
	c.initial = nil
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c, nil
}

// Messages returns a copy of the conversation in insertion order.
func (c *Conversation) Messages() []message.Message {
	return c.chat.Messages()
}

// Events returns the bus on which activity is published.
func (c *Conversation) Events() *EventBus { return c.events }

// IsLoading reports whether a send is outstanding.
func (c *Conversation) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending != nil
}

// Pending returns the outstanding request, if any.
func (c *Conversation) Pending() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return Request{}, false
	}
	return c.pending.req, true
}

// SendMessage appends a user message with the given content, marks the
// conversation as loading and dispatches the handler. Empty content is sent
// as is. It returns ErrBusy, appending nothing, while another send is
// outstanding.
func (c *Conversation) SendMessage(content string) (message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return message.Message{}, ErrClosed
	}
	if c.pending != nil {
		return message.Message{}, fmt.Errorf("%w (request %s)", ErrBusy, c.pending.req.ID)
	}

	msg := c.stamp(message.New(role.User, content))
	if err := c.chat.Append(msg); err != nil {
		return message.Message{}, err
	}

	ctx, cancel := context.WithCancel(c.ctx)
	req := Request{ID: c.newID(), Message: msg}
	c.pending = &pending{req: req, cancel: cancel}

	c.log.Debug().Str("request_id", req.ID).Int("len", len(content)).Msg("message sent")
	c.publish(Event{Kind: EventMessageSent, RequestID: req.ID, Message: msg, Loading: true})
	c.publish(Event{Kind: EventLoadingChanged, RequestID: req.ID, Loading: true})

	c.wg.Add(1)
	go c.dispatch(ctx, req)

	return msg, nil
}

// Stop cancels the outstanding request, if any, and clears the loading flag.
// A reply for the stopped request that arrives later is discarded. Calling
// Stop while idle does nothing.
func (c *Conversation) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return
	}

	id := c.pending.req.ID
	c.finish()

	c.log.Debug().Str("request_id", id).Msg("request stopped")
	c.publish(Event{Kind: EventStopped, RequestID: id})
	c.publish(Event{Kind: EventLoadingChanged, RequestID: id})
}

// ReceiveMessage appends a message pushed by the host. The role defaults to
// assistant. An assistant message answers the outstanding request, ending
// the loading state; other roles leave it untouched.
func (c *Conversation) ReceiveMessage(content string, r ...role.Role) (message.Message, error) {
	rl := role.Assistant
	if len(r) > 0 {
		rl = r[0]
	}

	msg := message.New(rl, content)
	if err := msg.Validate(); err != nil {
		return message.Message{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return message.Message{}, ErrClosed
	}

	msg = c.stamp(msg)
	if err := c.chat.Append(msg); err != nil {
		return message.Message{}, err
	}

	var id string
	if c.pending != nil {
		id = c.pending.req.ID
	}
	ends := c.pending != nil && rl == role.Assistant

	c.publish(Event{Kind: EventMessageReceived, RequestID: id, Message: msg, Loading: c.pending != nil && !ends})
	if ends {
		c.finish()
		c.publish(Event{Kind: EventLoadingChanged, RequestID: id})
	}

	return msg, nil
}

// Resolve delivers the reply for the request with the given ID. It returns
// false, appending nothing, if that request is no longer outstanding
// (stopped, already answered or unknown). An invalid reply role is an error.
func (c *Conversation) Resolve(requestID string, r Reply) (bool, error) {
	msg := r.message()
	if err := msg.Validate(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current(requestID) {
		c.log.Debug().Str("request_id", requestID).Msg("discarding reply for stale request")
		return false, nil
	}

	msg = c.stamp(msg)
	if err := c.chat.Append(msg); err != nil {
		return false, err
	}
	c.finish()

	c.log.Debug().Str("request_id", requestID).Msg("reply received")
	c.publish(Event{Kind: EventMessageReceived, RequestID: requestID, Message: msg})
	c.publish(Event{Kind: EventLoadingChanged, RequestID: requestID})

	return true, nil
}

// Close cancels any outstanding request and waits for handler goroutines to
// return. Further sends fail with ErrClosed.
func (c *Conversation) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.pending != nil {
		id := c.pending.req.ID
		c.finish()
		c.publish(Event{Kind: EventStopped, RequestID: id})
		c.publish(Event{Kind: EventLoadingChanged, RequestID: id})
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	return nil
}

func (c *Conversation) dispatch(ctx context.Context, req Request) {
	defer c.wg.Done()

	if c.handler == nil {
		return
	}

	reply, err := c.handler.Send(ctx, req)
	if errors.Is(err, ErrReplyDeferred) {
		return
	}
	if err != nil {
		c.Fail(req.ID, err)
		return
	}

	if _, err := c.Resolve(req.ID, reply); err != nil {
		c.Fail(req.ID, err)
	}
}

// Fail ends the request with the given ID as failed: loading is cleared, a
// send_failed event carries err and no message is appended. It returns false
// if that request is no longer outstanding.
func (c *Conversation) Fail(requestID string, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current(requestID) {
		c.log.Debug().Str("request_id", requestID).Err(err).Msg("dropping error for stale request")
		return false
	}
	c.finish()

	c.log.Warn().Str("request_id", requestID).Err(err).Msg("send failed")
	c.publish(Event{Kind: EventSendFailed, RequestID: requestID, Err: err})
	c.publish(Event{Kind: EventLoadingChanged, RequestID: requestID})

	return true
}

// current reports whether id names the outstanding request. c.mu must be held.
func (c *Conversation) current(id string) bool {
	return c.pending != nil && c.pending.req.ID == id
}

// finish cancels and clears the outstanding request. c.mu must be held.
func (c *Conversation) finish() {
	c.pending.cancel()
	c.pending = nil
}

func (c *Conversation) stamp(m message.Message) message.Message {
	var id string
	if m.ID == "" {
		id = c.newID()
	}
	return m.Stamp(id, c.now())
}

// publish stamps and sends e. c.mu must be held so events keep the order of
// the state changes they describe.
func (c *Conversation) publish(e Event) {
	e.Timestamp = c.now()
	c.events.Publish(e)
}

var _ Handle = (*Conversation)(nil)
var _ Resolver = (*Conversation)(nil)
