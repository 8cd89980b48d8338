package gamesession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/internal/realtime"
	"go.uber.org/zap"
)

var ErrInvalidGame = errors.New("invalid game id")

const EventUpdate = "update"

// DisplayOptions carries the rendering hints a caller opens a session with.
type DisplayOptions struct {
	SquareSize       string
	DrawTopLabels    bool
	DrawBottomLabels bool
	DrawLeftLabels   bool
	DrawRightLabels  bool
}

// Opener is the part of Service the widgets depend on.
type Opener interface {
	Open(gameID int64, opts DisplayOptions) (*Session, error)
}

// Service multiplexes sessions over one realtime transport. It counts
// interest per game: the first Open connects the game, the last Destroy
// disconnects it.
type Service struct {
	transport realtime.Transport
	now       func() time.Time

	mu    sync.Mutex
	games map[int64]*gameConn
}

type gameConn struct {
	id       int64
	refs     int
	engine   Engine
	sessions map[*Session]struct{}
	handlers []int
}

func NewService(t realtime.Transport) *Service {
	s := &Service{transport: t, now: time.Now, games: make(map[int64]*gameConn)}
	t.OnConnected(s.resubscribe)
	return s
}

func (s *Service) Open(gameID int64, opts DisplayOptions) (*Session, error) {
	if gameID <= 0 {
		return nil, ErrInvalidGame
	}
	s.mu.Lock()
	gc, ok := s.games[gameID]
	if !ok {
		gc = &gameConn{id: gameID, engine: Engine{GameID: gameID}, sessions: make(map[*Session]struct{})}
		s.games[gameID] = gc
		gc.handlers = s.subscribe(gameID)
	}
	gc.refs++
	sess := &Session{svc: s, gameID: gameID, opts: opts, listeners: make(map[int]listener)}
	gc.sessions[sess] = struct{}{}
	s.mu.Unlock()

	if !ok {
		s.sendConnect(gameID)
	}
	obslog.L().Debug("game_session_open", zap.Int64("game_id", gameID), zap.Bool("new_connection", !ok))
	return sess, nil
}

// Connections reports how many sessions hold gameID.
func (s *Service) Connections(gameID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gc, ok := s.games[gameID]; ok {
		return gc.refs
	}
	return 0
}

func (s *Service) subscribe(gameID int64) []int {
	prefix := fmt.Sprintf("game/%d/", gameID)
	now := s.now
	return []int{
		s.transport.On(prefix+"gamedata", s.frameHandler(gameID, "gamedata", func(e *Engine, raw json.RawMessage) error { return applyGameData(e, raw, now()) })),
		s.transport.On(prefix+"move", s.frameHandler(gameID, "move", applyMove)),
		s.transport.On(prefix+"phase", s.frameHandler(gameID, "phase", applyPhase)),
		s.transport.On(prefix+"removed_stones", s.frameHandler(gameID, "removed_stones", applyRemovedStones)),
		s.transport.On(prefix+"clock", s.frameHandler(gameID, "clock", func(e *Engine, raw json.RawMessage) error { return applyClock(e, raw, now()) })),
	}
}

func (s *Service) frameHandler(gameID int64, kind string, apply func(*Engine, json.RawMessage) error) realtime.Handler {
	return func(raw json.RawMessage) {
		s.mu.Lock()
		gc, ok := s.games[gameID]
		if !ok {
			s.mu.Unlock()
			return
		}
		next := gc.engine.clone()
		if err := apply(&next, raw); err != nil {
			s.mu.Unlock()
			obslog.L().Warn("game_frame_rejected", zap.Int64("game_id", gameID), zap.String("kind", kind), zap.Error(err))
			return
		}
		gc.engine = next
		targets := make([]*Session, 0, len(gc.sessions))
		for sess := range gc.sessions {
			targets = append(targets, sess)
		}
		s.mu.Unlock()

		for _, sess := range targets {
			sess.emit(EventUpdate)
		}
	}
}

func (s *Service) engine(gameID int64) Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gc, ok := s.games[gameID]; ok {
		return gc.engine.clone()
	}
	return Engine{GameID: gameID}
}

func (s *Service) release(sess *Session) {
	s.mu.Lock()
	gc, ok := s.games[sess.gameID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, held := gc.sessions[sess]; !held {
		s.mu.Unlock()
		return
	}
	delete(gc.sessions, sess)
	gc.refs--
	last := gc.refs <= 0
	if last {
		delete(s.games, sess.gameID)
	}
	s.mu.Unlock()

	if !last {
		return
	}
	for _, id := range gc.handlers {
		s.transport.Off(id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.transport.Send(ctx, "game/disconnect", map[string]any{"game_id": sess.gameID}); err != nil {
		obslog.L().Warn("game_disconnect_failed", zap.Int64("game_id", sess.gameID), zap.Error(err))
	}
}

func (s *Service) sendConnect(gameID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.transport.Send(ctx, "game/connect", map[string]any{"game_id": gameID, "chat": false}); err != nil {
		// retried by resubscribe once the socket is back
		obslog.L().Warn("game_connect_failed", zap.Int64("game_id", gameID), zap.Error(err))
	}
}

func (s *Service) resubscribe() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.sendConnect(id)
	}
}

type listener struct {
	event string
	cb    func()
}

// Session is one holder's handle on a live game.
type Session struct {
	svc    *Service
	gameID int64
	opts   DisplayOptions

	mu        sync.Mutex
	nextID    int
	listeners map[int]listener
	destroyed bool
}

func (s *Session) GameID() int64 {
	if s == nil {
		return 0
	}
	return s.gameID
}

func (s *Session) Options() DisplayOptions { return s.opts }

// On registers cb for event and returns an id for Off.
func (s *Session) On(event string, cb func()) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.listeners[s.nextID] = listener{event: event, cb: cb}
	return s.nextID
}

func (s *Session) Off(id int) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

// Listeners reports the number of registered callbacks.
func (s *Session) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Session) Engine() Engine {
	if s == nil || s.svc == nil {
		return Engine{}
	}
	return s.svc.engine(s.gameID)
}

// Destroy releases the session. Safe on nil and safe to call twice.
func (s *Session) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.listeners = make(map[int]listener)
	s.mu.Unlock()
	if s.svc != nil {
		s.svc.release(s)
	}
}

func (s *Session) emit(event string) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	cbs := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		if l.event == event {
			cbs = append(cbs, l.cb)
		}
	}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}
