package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/goban-desk/internal/obslog"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("realtime socket not connected")

// Frame is an inbound server push.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Command is an outbound request.
type Command struct {
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
}

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type Handler func(data json.RawMessage)

// HeaderProvider supplies handshake headers.
type HeaderProvider func() map[string]string

// Transport is what the session and report services need from the socket.
type Transport interface {
	Send(ctx context.Context, command string, data any) error
	On(event string, h Handler) int
	Off(id int)
	OnConnected(cb func()) int
}

type handlerEntry struct {
	id    int
	event string
	h     Handler
}

type Socket struct {
	wsURL string

	connM sync.RWMutex
	conn  *websocket.Conn
	state State

	cbM       sync.RWMutex
	nextID    int
	handlers  []handlerEntry
	connected map[int]func()

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

func NewSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *Socket {
	ctx, cancel := context.WithCancel(context.Background())
	return &Socket{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		connected:            make(map[int]func()),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

// SetHeaderProvider injects headers into the handshake.
func (s *Socket) SetHeaderProvider(h HeaderProvider) { s.headerProvider = h }

func (s *Socket) Connect(ctx context.Context) error {
	s.connM.Lock()
	if s.state == StateConnected || s.state == StateConnecting {
		s.connM.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.connM.Unlock()

	if err := s.dial(ctx); err != nil {
		s.setState(StateFailed)
		s.scheduleReconnect()
		return err
	}
	return nil
}

func (s *Socket) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      s.buildHeaders(),
	})
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)

	s.connM.Lock()
	s.conn = conn
	s.state = StateConnected
	s.connM.Unlock()
	obslog.L().Info("realtime_connected", zap.String("url", s.wsURL))

	s.wg.Add(2)
	go s.listen(conn)
	go s.pingLoop(conn)
	s.fireConnected()
	return nil
}

func (s *Socket) listen(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		var f Frame
		if err := wsjson.Read(s.rootCtx, conn, &f); err != nil {
			if s.isStopping() {
				return
			}
			obslog.L().Warn("realtime_read_error", zap.Error(err))
			s.dropConn(conn, websocket.StatusGoingAway, "reconnect")
			s.scheduleReconnect()
			return
		}
		s.dispatch(f)
	}
}

func (s *Socket) dispatch(f Frame) {
	s.cbM.RLock()
	matched := make([]Handler, 0, 2)
	for _, e := range s.handlers {
		if e.event == f.Event {
			matched = append(matched, e.h)
		}
	}
	s.cbM.RUnlock()
	for _, h := range matched {
		h(f.Data)
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.rootCtx.Done():
			return
		case <-t.C:
			if s.currentConn() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if s.isStopping() {
					return
				}
				s.dropConn(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Socket) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 || s.isStopping() {
		return
	}
	s.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(s.reconnectDelay * time.Duration(attempt)):
			}
			if err := s.dial(s.rootCtx); err != nil {
				obslog.L().Warn("realtime_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			return
		}
		s.setState(StateFailed)
	}()
}

// Send writes a command frame.
func (s *Socket) Send(ctx context.Context, command string, data any) error {
	conn := s.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, Command{Command: command, Data: data})
}

// On registers h for frames whose event equals event.
func (s *Socket) On(event string, h Handler) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextID++
	s.handlers = append(s.handlers, handlerEntry{id: s.nextID, event: event, h: h})
	return s.nextID
}

func (s *Socket) Off(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, e := range s.handlers {
		if e.id == id {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
	delete(s.connected, id)
}

// OnConnected runs cb after every successful (re)connect. Remove with Off.
func (s *Socket) OnConnected(cb func()) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextID++
	s.connected[s.nextID] = cb
	return s.nextID
}

func (s *Socket) fireConnected() {
	s.cbM.RLock()
	cbs := make([]func(), 0, len(s.connected))
	for _, cb := range s.connected {
		cbs = append(cbs, cb)
	}
	s.cbM.RUnlock()
	for _, cb := range cbs {
		cb()
	}
}

func (s *Socket) State() State {
	s.connM.RLock()
	defer s.connM.RUnlock()
	return s.state
}

func (s *Socket) setState(st State) {
	s.connM.Lock()
	s.state = st
	s.connM.Unlock()
}

func (s *Socket) currentConn() *websocket.Conn {
	s.connM.RLock()
	defer s.connM.RUnlock()
	return s.conn
}

func (s *Socket) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	s.connM.Lock()
	if s.conn == conn {
		s.conn = nil
		s.state = StateDisconnected
	}
	s.connM.Unlock()
	_ = conn.Close(code, reason)
}

func (s *Socket) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if conn := s.currentConn(); conn != nil {
		s.dropConn(conn, websocket.StatusNormalClosure, "close")
	}
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Socket) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Socket) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headerProvider == nil {
		return hdr
	}
	for k, v := range s.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
