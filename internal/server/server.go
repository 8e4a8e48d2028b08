// Package server carries qvcs sessions over websocket connections.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"qvcs-go/internal/auth"
	"qvcs-go/internal/qvcs"
)

// SessionGauge tracks connected sessions; *metrics.Metrics implements it.
type SessionGauge interface {
	SessionOpened()
	SessionClosed()
}

// Options tunes the transport.
type Options struct {
	WriteTimeout time.Duration
	ReadLimit    int64
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Sessions may be nil.
	Sessions SessionGauge
}

// Server accepts websocket sessions and feeds their requests to a Service.
type Server struct {
	service *qvcs.Service
	tokens  *auth.TokenService
	ids     qvcs.IDGenerator
	logger  qvcs.Logger
	opts    Options
}

// New creates a Server. tokens is nil when authentication is disabled.
func New(service *qvcs.Service, tokens *auth.TokenService, ids qvcs.IDGenerator, logger qvcs.Logger, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if ids == nil {
		ids = qvcs.UUIDGenerator{}
	}
	return &Server{
		service: service,
		tokens:  tokens,
		ids:     ids,
		logger:  logger,
		opts:    opts,
	}
}

// Handler returns the HTTP routes: /ws, /healthz and optionally /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveSession)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics)
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.tokens == nil {
		return "", nil
	}
	claims, err := s.tokens.ValidateToken(auth.ExtractBearerToken(r.Header.Get("Authorization")))
	if err != nil {
		return "", err
	}
	return claims.UserName, nil
}

func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		s.logger.Warn("session rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if s.opts.ReadLimit > 0 {
		ws.SetReadLimit(s.opts.ReadLimit)
	}

	sess := qvcs.NewSessionContext(s.ids.New(), user)
	c := &conn{id: sess.ID, ws: ws, writeTimeout: s.opts.WriteTimeout}
	log := s.logger.With("session", sess.ID)
	dispatcher := s.service.Dispatcher()

	dispatcher.Register(c)
	if s.opts.Sessions != nil {
		s.opts.Sessions.SessionOpened()
	}
	log.Info("session opened", "user", user, "remote", r.RemoteAddr)

	defer func() {
		dispatcher.Unregister(sess.ID)
		if err := sess.Close(); err != nil {
			log.Error("closing session", "error", err)
		}
		if s.opts.Sessions != nil {
			s.opts.Sessions.SessionClosed()
		}
		ws.CloseNow()
		log.Info("session closed")
	}()

	if err := s.loop(r.Context(), sess, c); err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		default:
			if !errors.Is(err, context.Canceled) {
				log.Warn("session ended", "error", err)
			}
		}
		return
	}
	ws.Close(websocket.StatusNormalClosure, "")
}

// loop handles one request at a time: read, handle, write the response, then
// flush the notifications that request produced.
func (s *Server) loop(ctx context.Context, sess *qvcs.SessionContext, c *conn) error {
	dispatcher := s.service.Dispatcher()
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}

		var resp *qvcs.Response
		var req qvcs.Request
		if typ != websocket.MessageText {
			resp = malformed("binary frames are not supported")
		} else if err := json.Unmarshal(data, &req); err != nil {
			resp = malformed("malformed request: " + err.Error())
		} else {
			resp = s.service.Handle(ctx, sess, &req)
		}

		if err := c.write(ctx, Frame{Type: FrameResponse, Response: resp}); err != nil {
			return err
		}
		dispatcher.Flush(ctx, sess.Outbox)
	}
}

func malformed(msg string) *qvcs.Response {
	return &qvcs.Response{Error: &qvcs.ErrorPayload{Kind: qvcs.KindInvalidRequest, Message: msg}}
}

// conn is the observer side of a session. Writes from the session's own loop
// and from other sessions' flushes are serialized by mu.
type conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

var _ qvcs.Observer = (*conn)(nil)

func (c *conn) SessionID() string {
	return c.id
}

func (c *conn) Deliver(ctx context.Context, n qvcs.Notification) error {
	return c.write(ctx, Frame{Type: FrameNotification, Notification: &n})
}

func (c *conn) write(ctx context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, f)
}
