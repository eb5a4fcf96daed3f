package web

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/wire"
)

//go:embed index.html
var indexHTML []byte

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 12
	sendQueue      = 64
)

// Server serves the canvas page and streams frames to it.
type Server struct {
	latch    *input.Latch
	keymap   input.Keymap
	logger   *zap.Logger
	upgrader websocket.Upgrader
	width    int
	height   int

	// Used only by the goroutine calling Present.
	surface  *frameSurface
	consumer *render.Consumer
	seq      uint64

	mu      sync.Mutex
	clients map[string]*client
	closed  bool

	// keyMu serializes latch updates so a flag stays on while any client
	// holds it.
	keyMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithKeymap replaces the default key bindings. Keys are KeyboardEvent
// codes such as "KeyW" or "ArrowUp".
func WithKeymap(km input.Keymap) Option {
	return func(s *Server) { s.keymap = km }
}

// WithSize sets the world size, which is also the canvas size.
func WithSize(width, height int) Option {
	return func(s *Server) { s.width, s.height = width, height }
}

// WithLogger sets the server's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server writing key state to latch.
func NewServer(latch *input.Latch, opts ...Option) *Server {
	s := &Server{
		latch:   latch,
		keymap:  input.DefaultKeymap(),
		logger:  zap.NewNop(),
		width:   960,
		height:  540,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 14,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.surface = &frameSurface{width: s.width, height: s.height}
	s.consumer = render.NewConsumer(s.surface, render.WithLogger(s.logger))
	return s
}

// Handler returns the page, websocket and health endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then closes every client.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web surface listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects every client. Later connections are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	clients := s.clients
	s.clients = make(map[string]*client)
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// Clients returns the number of connected pages.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Present converts frame to rectangles and broadcasts it. An invalid frame
// is rejected before anything is sent.
func (s *Server) Present(frame wire.Frame) error {
	if err := s.consumer.Present(frame); err != nil {
		return err
	}
	s.seq++
	if s.Clients() == 0 {
		return nil
	}
	msg, err := json.Marshal(frameMessage{Type: "frame", Seq: s.seq, Rects: s.surface.rects})
	if err != nil {
		return err
	}
	s.broadcast(msg)
	return nil
}

func (s *Server) broadcast(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.enqueue(msg)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), ws)
	hello, err := json.Marshal(helloMessage{Type: "hello", ID: c.id, Width: s.width, Height: s.height})
	if err != nil {
		_ = ws.Close()
		return
	}
	c.enqueue(hello)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Info("client connected", zap.String("client", c.id), zap.String("remote", r.RemoteAddr))

	go c.writePump()
	go s.readPump(c)
}

// readPump applies the client's key events until it disconnects.
func (s *Server) readPump(c *client) {
	defer s.leave(c)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Debug("bad client message", zap.String("client", c.id), zap.Error(err))
			continue
		}
		switch msg.Type {
		case "key":
			f, ok := s.keymap.Lookup(msg.Code)
			if !ok {
				continue
			}
			s.keyMu.Lock()
			c.track(f, msg.Down)
			s.syncKeys(wire.InputState(0).With(f, true))
			s.keyMu.Unlock()
		case "reset":
			s.release(c)
		}
	}
}

// leave removes c and releases the keys it still held.
func (s *Server) leave(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
	s.release(c)
	s.logger.Info("client disconnected", zap.String("client", c.id))
}

// release clears the flags c holds. Flags another client still holds stay
// on.
func (s *Server) release(c *client) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	s.syncKeys(c.releaseAll())
}

// syncKeys sets each flag in mask to whether any connected client holds it.
// The caller holds keyMu.
func (s *Server) syncKeys(mask wire.InputState) {
	var union wire.InputState
	s.mu.Lock()
	for _, c := range s.clients {
		union |= c.heldKeys()
	}
	s.mu.Unlock()
	for i := 0; i < wire.FlagCount; i++ {
		if f := wire.Flag(1 << i); mask.Has(f) {
			s.latch.Set(f, union.Has(f))
		}
	}
}

type client struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	held   wire.InputState
	closed bool
}

func newClient(id string, ws *websocket.Conn) *client {
	return &client{id: id, ws: ws, send: make(chan []byte, sendQueue)}
}

// enqueue queues msg without blocking. A slow client loses frames.
func (c *client) enqueue(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) track(f wire.Flag, down bool) {
	c.mu.Lock()
	c.held = c.held.With(f, down)
	c.mu.Unlock()
}

func (c *client) heldKeys() wire.InputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

func (c *client) releaseAll() wire.InputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.held
	c.held = 0
	return held
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
