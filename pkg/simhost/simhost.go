// Package simhost is a stand-in backend that answers every message with a
// canned response after a delay. It is what the example binary uses when no
// real host is connected.
package simhost

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/germanamz/chatbox/pkg/conversation"
)

// Responder builds the reply text for a user message.
type Responder func(content string) string

// Responses returns the canned replies for content.
func Responses(content string) []string {
	words := strings.Fields(content)
	return []string{
		"That's interesting! Tell me more about that.",
		"I understand. How can I help you with this?",
		"Thanks for sharing. Is there anything specific you'd like to know?",
		fmt.Sprintf("I see you said: %q. Could you elaborate on that?", content),
		"That's a great question! Let me think about that...",
		"I'm here to help. What else would you like to discuss?",
		"Let me see if I understand correctly. You're asking about " + strings.Join(words[:min(3, len(words))], " ") + "...",
	}
}

// RandomResponse picks one of Responses at random.
func RandomResponse(content string) string {
	rs := Responses(content)
	return rs[rand.IntN(len(rs))] //nolint:gosec // cosmetic randomness
}

// Option configures a Host.
type Option func(*Host)

// WithDelay sets how long the host "thinks" before replying.
func WithDelay(d time.Duration) Option {
	return func(h *Host) { h.delay = d }
}

// WithResponder replaces RandomResponse.
func WithResponder(r Responder) Option {
	return func(h *Host) { h.respond = r }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithDeferred makes the host accept every request immediately and deliver
// the reply later through target.Resolve, like a host behind a network
// callback would.
func WithDeferred(target conversation.Resolver) Option {
	return func(h *Host) { h.target = target }
}

// Host is a conversation.Handler with simulated latency.
type Host struct {
	delay   time.Duration
	respond Responder
	log     zerolog.Logger
	target  conversation.Resolver

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Host.
func New(opts ...Option) *Host {
	h := &Host{
		delay:   time.Second,
		respond: RandomResponse,
		log:     zerolog.Nop(),
		timers:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetTarget sets the resolver used in deferred mode. It is needed when the
// conversation is created after the host.
func (h *Host) SetTarget(target conversation.Resolver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = target
}

// Send implements conversation.Handler.
func (h *Host) Send(ctx context.Context, req conversation.Request) (conversation.Reply, error) {
	h.mu.Lock()
	target := h.target
	h.mu.Unlock()

	if target != nil {
		h.schedule(target, req)
		return conversation.Reply{}, conversation.ErrReplyDeferred
	}

	t := time.NewTimer(h.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return conversation.Reply{}, ctx.Err()
	case <-t.C:
	}

	return conversation.Reply{Content: h.respond(req.Message.Content)}, nil
}

// schedule resolves req after the delay. A request stopped in the meantime
// is simply not current anymore, so the late Resolve is discarded.
func (h *Host) schedule(target conversation.Resolver, req conversation.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.timers[req.ID] = time.AfterFunc(h.delay, func() {
		h.mu.Lock()
		delete(h.timers, req.ID)
		h.mu.Unlock()

		ok, err := target.Resolve(req.ID, conversation.Reply{Content: h.respond(req.Message.Content)})
		if err != nil {
			h.log.Warn().Err(err).Str("request_id", req.ID).Msg("resolve failed")
			return
		}
		if !ok {
			h.log.Debug().Str("request_id", req.ID).Msg("reply discarded for stopped request")
		}
	})
}

// Close cancels replies that have not fired yet.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
}

var _ conversation.Handler = (*Host)(nil)
