// Package socket owns the live push connection for one album.
package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"momentify/internal/models"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// MediaHandler receives newMedia events.
type MediaHandler func(models.MediaItem)

// Options configures a Session.
type Options struct {
	// URL is the push server base URL; the album channel path is appended.
	URL string
	// MaxAttempts bounds consecutive failed connection attempts.
	MaxAttempts int
	Delay       time.Duration
	DelayMax    time.Duration
	Dialer      Dialer
	Header      http.Header
	Logger      *slog.Logger
	// OnStateChange observes lifecycle transitions, e.g. for a live badge.
	OnStateChange func(State)
}

// Session is at most one live connection scoped to one album.
type Session struct {
	opts     Options
	endpoint string
	endErr   error
	log      *slog.Logger

	mu       sync.Mutex
	state    State
	albumID  string
	conn     *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}
	attempts int
	handler  MediaHandler

	writeMu sync.Mutex
}

// NewSession constructs a disconnected Session.
func NewSession(opts Options) *Session {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	if opts.DelayMax < opts.Delay {
		opts.DelayMax = opts.Delay
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: writeWait,
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	endpoint, err := Endpoint(opts.URL)
	return &Session{opts: opts, endpoint: endpoint, endErr: err, log: logger.With("component", "socket")}
}

// Connect opens a session for albumID. Connecting to the album the session
// already serves is a no-op; any other session is torn down first.
// Connection errors are logged and retried, never returned.
func (s *Session) Connect(albumID string) {
	s.mu.Lock()
	if s.state != StateDisconnected && s.albumID == albumID {
		s.mu.Unlock()
		s.log.Debug("already connected to memory", "album_id", albumID)
		return
	}
	s.mu.Unlock()

	s.Disconnect()

	if s.endErr != nil {
		s.log.Error("cannot connect", "album_id", albumID, "err", s.endErr)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.albumID = albumID
	s.cancel = cancel
	s.done = done
	s.attempts = 0
	s.state = StateConnecting
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	s.log.Info("connecting to websocket", "url", s.endpoint, "album_id", albumID)
	go s.run(ctx, albumID, done)
}

// Disconnect leaves the album room, closes the transport and clears the
// session. It is idempotent. It must not be called from a MediaHandler.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel, done, conn, albumID := s.cancel, s.done, s.conn, s.albumID
	wasActive := s.state != StateDisconnected
	s.cancel, s.done, s.conn = nil, nil, nil
	s.albumID = ""
	s.attempts = 0
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil && albumID != "" {
		if err := s.emit(conn, EventLeave, albumID); err != nil {
			s.log.Debug("send leave", "album_id", albumID, "err", err)
		}
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		s.writeMu.Unlock()
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
	if wasActive {
		s.notifyState(StateDisconnected)
	}
}

// IsConnected reports transport liveness.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AlbumID returns the album the session serves, or "".
func (s *Session) AlbumID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.albumID
}

// OnNewMedia sets the newMedia handler. Callers remove the previous handler
// with OffNewMedia before subscribing again.
func (s *Session) OnNewMedia(h MediaHandler) {
	s.mu.Lock()
	replaced := s.handler != nil
	s.handler = h
	s.mu.Unlock()
	if replaced {
		s.log.Warn("newMedia handler replaced without OffNewMedia")
	}
}

// OffNewMedia removes the newMedia handler.
func (s *Session) OffNewMedia() {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context, albumID string, done chan struct{}) {
	defer close(done)
	for {
		conn, _, err := s.opts.Dialer.DialContext(ctx, s.endpoint, s.opts.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n := s.recordFailure(done)
			s.log.Warn("websocket connection error", "album_id", albumID, "attempt", n, "err", err)
			if n >= s.opts.MaxAttempts {
				s.log.Error("max reconnection attempts reached", "album_id", albumID, "attempts", n)
				s.expire(done)
				return
			}
			s.transition(done, StateReconnecting)
			if !sleep(ctx, Backoff(n, s.opts.Delay, s.opts.DelayMax)) {
				return
			}
			continue
		}

		if !s.attach(done, conn) {
			conn.Close()
			return
		}
		s.log.Info("websocket connected", "album_id", albumID)
		if err := s.emit(conn, EventJoin, albumID); err != nil {
			s.log.Warn("send join", "album_id", albumID, "err", err)
		}

		err = s.readPump(conn)
		s.detach(done, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			s.log.Warn("websocket disconnected", "album_id", albumID, "err", err)
		} else {
			s.log.Info("websocket disconnected", "album_id", albumID)
		}
		s.transition(done, StateReconnecting)
		if !sleep(ctx, s.opts.Delay) {
			return
		}
	}
}

// readPump delivers inbound messages until the connection fails.
func (s *Session) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go s.pingPump(conn, stop)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msgs, errs := decodeFrames(frame)
		for _, err := range errs {
			s.log.Warn("invalid message format", "err", err)
		}
		for _, msg := range msgs {
			s.dispatch(msg)
		}
	}
}

func (s *Session) pingPump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Session) dispatch(msg Message) {
	if msg.Event != EventNewMedia {
		s.log.Debug("ignoring event", "event", msg.Event)
		return
	}
	var item models.MediaItem
	if err := json.Unmarshal(msg.Data, &item); err != nil {
		s.log.Warn("invalid newMedia payload", "err", err)
		return
	}
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	s.log.Debug("received new media event", "media_id", item.ID)
	if h != nil {
		h(item)
	}
}

func (s *Session) emit(conn *websocket.Conn, event string, data interface{}) error {
	payload, err := newMessage(event, data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// The helpers below only touch session state while done still identifies
// the current run; a superseded run leaves the new session alone.

func (s *Session) recordFailure(done chan struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != done {
		return 0
	}
	s.attempts++
	return s.attempts
}

func (s *Session) attach(done chan struct{}, conn *websocket.Conn) bool {
	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return false
	}
	s.conn = conn
	s.attempts = 0
	s.state = StateConnected
	s.mu.Unlock()
	s.notifyState(StateConnected)
	return true
}

func (s *Session) detach(done chan struct{}, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done && s.conn == conn {
		s.conn = nil
	}
}

func (s *Session) transition(done chan struct{}, st State) {
	s.mu.Lock()
	if s.done != done || s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()
	s.notifyState(st)
}

// expire self-disconnects after the attempt ceiling. The run goroutine is
// exiting, so nothing waits on done here.
func (s *Session) expire(done chan struct{}) {
	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel, s.done, s.conn = nil, nil, nil
	s.albumID = ""
	s.attempts = 0
	s.state = StateDisconnected
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.notifyState(StateDisconnected)
}

func (s *Session) notifyState(st State) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
