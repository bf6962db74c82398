// Package hostlink connects a conversation to a host running in another
// process over a websocket. The widget side runs a Server; the host dials in
// with a Client, receives every user message and answers by request id.
package hostlink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/germanamz/chatbox/pkg/chats/role"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// ErrNoHost fails a send while no host is connected.
var ErrNoHost = errors.New("hostlink: no host connected")

const writeTimeout = 5 * time.Second

// Conversation is what a Server drives: the host-facing operations plus the
// event stream it forwards.
type Conversation interface {
	conversation.Resolver
	Events() *conversation.EventBus
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithOriginPatterns allows cross-origin connections from the given host
// patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// Server accepts one host connection at a time. It is an http.Handler for
// the websocket endpoint and a conversation.Handler that forwards every send
// to the connected host.
type Server struct {
	log     zerolog.Logger
	origins []string

	mu     sync.Mutex
	conn   *websocket.Conn
	target Conversation
	sub    *conversation.Subscription
	wg     sync.WaitGroup

	// forwarded maps requests awaiting a reply to the connection that
	// carried them.
	forwarded map[string]*websocket.Conn
}

// NewServer creates a Server. Call Bind once the conversation exists.
func NewServer(opts ...Option) *Server {
	s := &Server{log: zerolog.Nop(), forwarded: make(map[string]*websocket.Conn)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind attaches the conversation that inbound frames are applied to and
// starts forwarding its replies and stops to the host.
func (s *Server) Bind(c Conversation) {
	sub := c.Events().Subscribe(64)

	s.mu.Lock()
	s.target = c
	s.sub = sub
	s.mu.Unlock()

	s.wg.Go(func() {
		for ev := range sub.C {
			switch ev.Kind {
			case conversation.EventMessageReceived:
				if !ev.Loading {
					s.forget(ev.RequestID)
				}
				msg := ev.Message
				s.write(Frame{Type: FrameMessageReceived, RequestID: ev.RequestID, Message: &msg})
			case conversation.EventStopped:
				s.forget(ev.RequestID)
				s.write(Frame{Type: FrameStopped, RequestID: ev.RequestID})
			case conversation.EventSendFailed:
				s.forget(ev.RequestID)
			}
		}
	})
}

// Connected reports whether a host is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send implements conversation.Handler. The request is handed to the host
// and the reply arrives later as a reply frame.
func (s *Server) Send(ctx context.Context, req conversation.Request) (conversation.Reply, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return conversation.Reply{}, ErrNoHost
	}

	s.mu.Lock()
	s.forwarded[req.ID] = conn
	s.mu.Unlock()

	msg := req.Message
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, conn, Frame{Type: FrameMessageSent, RequestID: req.ID, Message: &msg}); err != nil {
		s.forget(req.ID)
		return conversation.Reply{}, fmt.Errorf("hostlink: forward message: %w", err)
	}

	return conversation.Reply{}, conversation.ErrReplyDeferred
}

// ServeHTTP upgrades the request and serves the host until it disconnects.
// A new connection replaces the previous one.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}

	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close(websocket.StatusPolicyViolation, "replaced by a new host")
	}
	s.log.Info().Str("remote", r.RemoteAddr).Msg("host connected")

	s.serve(r.Context(), conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	var orphaned []string
	for id, c := range s.forwarded {
		if c == conn {
			orphaned = append(orphaned, id)
			delete(s.forwarded, id)
		}
	}
	target := s.target
	s.mu.Unlock()

	_ = conn.CloseNow()
	s.log.Info().Str("remote", r.RemoteAddr).Int("orphaned", len(orphaned)).Msg("host disconnected")

	// The host that owed these replies is gone.
	if target != nil {
		for _, id := range orphaned {
			target.Fail(id, ErrNoHost)
		}
	}
}

func (s *Server) forget(requestID string) {
	s.mu.Lock()
	delete(s.forwarded, requestID)
	s.mu.Unlock()
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		if err := s.apply(f); err != nil {
			s.log.Warn().Err(err).Str("type", string(f.Type)).Msg("rejected frame")
			s.writeTo(conn, Frame{Type: FrameError, RequestID: f.RequestID, Error: err.Error()})
		}
	}
}

// apply performs one inbound frame on the bound conversation.
func (s *Server) apply(f Frame) error {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	if target == nil {
		return errors.New("hostlink: no conversation bound")
	}

	switch f.Type {
	case FrameReply:
		ok, err := target.Resolve(f.RequestID, f.reply())
		if err != nil {
			return err
		}
		if !ok {
			s.log.Debug().Str("request_id", f.RequestID).Msg("reply for stale request discarded")
		}
		return nil

	case FrameReceive:
		var roles []role.Role
		if f.Role != "" {
			roles = append(roles, f.Role)
		}
		_, err := target.ReceiveMessage(f.Content, roles...)
		return err

	case FrameStop:
		target.Stop()
		return nil

	case FrameFail:
		msg := f.Error
		if msg == "" {
			msg = "host reported a failure"
		}
		target.Fail(f.RequestID, &HostError{Message: msg})
		return nil

	default:
		return fmt.Errorf("hostlink: unknown frame type %q", f.Type)
	}
}

// write sends f to the connected host, if any.
func (s *Server) write(f Frame) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.writeTo(conn, f)
	}
}

func (s *Server) writeTo(conn *websocket.Conn, f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, f); err != nil {
		s.log.Debug().Err(err).Str("type", string(f.Type)).Msg("websocket write")
	}
}

// Close stops forwarding events and drops the host connection.
func (s *Server) Close() error {
	s.mu.Lock()
	target, sub, conn := s.target, s.sub, s.conn
	s.sub = nil
	s.conn = nil
	s.mu.Unlock()

	if sub != nil {
		target.Events().Unsubscribe(sub)
	}
	s.wg.Wait()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "")
	}
	return nil
}

var _ conversation.Handler = (*Server)(nil)
var _ http.Handler = (*Server)(nil)
