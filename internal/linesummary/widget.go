package linesummary

import (
	"strconv"
	"sync"
	"time"

	"github.com/park285/goban-desk/internal/gamesession"
	"github.com/park285/goban-desk/internal/msgcat"
	"github.com/park285/goban-desk/internal/obslog"
	"go.uber.org/zap"
)

type Mode string

const (
	ModeOpponentOnly Mode = "opponent-only"
	ModeBothPlayers  Mode = "both-players"
)

type Props struct {
	GameID     int64
	Black      User
	White      User
	Player     *User
	Width      int
	Height     int
	RengoTeams *Teams
	Mode       Mode
	// OnSession receives the session once it is acquired.
	OnSession func(*gamesession.Session)
}

// ViewState is recomputed in full from the engine on every update.
type ViewState struct {
	MoveNumber          int
	GameName            string
	BlackScore          string
	WhiteScore          string
	BlackName           string
	WhiteName           string
	CurrentUsersMove    bool
	BlackToMoveCls      string
	WhiteToMoveCls      string
	InStoneRemovalPhase bool
	Finished            bool

	clock   *gamesession.Clock
	toMove  gamesession.Stone
	playing bool
	synced  bool
}

type Option func(*Widget)

func WithScheduler(s Scheduler) Option { return func(w *Widget) { w.sched = s } }

func WithCatalog(c *msgcat.Catalog) Option { return func(w *Widget) { w.cat = c } }

// WithCurrentUser sets the logged-in user whose turn highlights the row.
func WithCurrentUser(id int64) Option { return func(w *Widget) { w.currentUser = id } }

// WithOnChange registers a callback fired after every state sync.
func WithOnChange(fn func()) Option { return func(w *Widget) { w.onChange = fn } }

func withClock(now func() time.Time) Option { return func(w *Widget) { w.now = now } }

// Widget keeps one game line summary in sync with its live session.
type Widget struct {
	opener      gamesession.Opener
	sched       Scheduler
	cat         *msgcat.Catalog
	currentUser int64
	onChange    func()
	now         func() time.Time

	mu         sync.Mutex
	props      Props
	mounted    bool
	gen        int
	cancel     func()
	session    *gamesession.Session
	listenerID int
	state      ViewState
}

func New(opener gamesession.Opener, props Props, opts ...Option) *Widget {
	w := &Widget{
		opener: opener,
		sched:  FrameScheduler{},
		now:    time.Now,
		props:  props,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cat == nil {
		w.cat = msgcat.MustDefault()
	}
	return w
}

func (w *Widget) Mount() {
	w.mu.Lock()
	if w.mounted {
		w.mu.Unlock()
		return
	}
	w.mounted = true
	w.gen++
	gen := w.gen
	w.mu.Unlock()
	w.scheduleAcquire(gen)
}

// SetProps swaps props. A different game id releases the current session
// before a new one is acquired.
func (w *Widget) SetProps(p Props) {
	w.mu.Lock()
	prev := w.props.GameID
	w.props = p
	if !w.mounted {
		w.mu.Unlock()
		return
	}
	if prev != p.GameID {
		old := w.detachLocked()
		w.state = ViewState{}
		gen := w.gen
		w.mu.Unlock()
		old.Destroy()
		w.scheduleAcquire(gen)
		return
	}
	w.mu.Unlock()
	w.sync()
}

func (w *Widget) Unmount() {
	w.mu.Lock()
	if !w.mounted {
		w.mu.Unlock()
		return
	}
	w.mounted = false
	sess := w.detachLocked()
	w.mu.Unlock()
	sess.Destroy()
}

// State returns the last projected view state.
func (w *Widget) State() ViewState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Widget) Props() Props {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.props
}

// scheduleAcquire must be called without w.mu held; Immediate runs
// the acquisition inline.
func (w *Widget) scheduleAcquire(gen int) {
	cancel := w.sched.Defer(func() { w.acquire(gen) })
	w.mu.Lock()
	stale := w.gen != gen
	if !stale {
		w.cancel = cancel
	}
	w.mu.Unlock()
	if stale {
		cancel()
	}
}

func (w *Widget) wantsSessionLocked(gen int) bool {
	return w.mounted && gen == w.gen && w.session == nil
}

// acquire opens outside w.mu: Open may wait on the socket, and frame
// delivery for this widget needs the lock.
func (w *Widget) acquire(gen int) {
	w.mu.Lock()
	if !w.wantsSessionLocked(gen) {
		w.mu.Unlock()
		return
	}
	gameID := w.props.GameID
	w.mu.Unlock()

	sess, err := w.opener.Open(gameID, gamesession.DisplayOptions{SquareSize: "auto"})
	if err != nil {
		obslog.L().Warn("line_summary_open_failed", zap.Int64("game_id", gameID), zap.Error(err))
		return
	}

	w.mu.Lock()
	if !w.wantsSessionLocked(gen) {
		w.mu.Unlock()
		sess.Destroy()
		return
	}
	w.session = sess
	w.listenerID = sess.On(gamesession.EventUpdate, w.sync)
	hook := w.props.OnSession
	loaded := sess.Engine().Loaded
	w.mu.Unlock()

	if hook != nil {
		hook(sess)
	}
	// a shared connection may already hold the game state
	if loaded {
		w.sync()
	}
}

// detachLocked invalidates pending acquisitions and returns the held
// session, if any, for the caller to Destroy after releasing w.mu.
func (w *Widget) detachLocked() *gamesession.Session {
	w.gen++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	sess := w.session
	if sess != nil {
		sess.Off(w.listenerID)
	}
	w.session = nil
	w.listenerID = 0
	return sess
}

func (w *Widget) sync() {
	w.mu.Lock()
	if w.session == nil {
		w.mu.Unlock()
		return
	}
	e := w.session.Engine()
	w.state = w.project(e)
	cb := w.onChange
	w.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (w *Widget) project(e gamesession.Engine) ViewState {
	score := e.ComputeScore(true)
	black, white := w.props.Black, w.props.White
	toMove := e.PlayerToMove()
	st := ViewState{
		MoveNumber:          e.GetMoveNumber(),
		GameName:            e.GameName,
		BlackScore:          w.points(float64(score.Black.Prisoners) + score.Black.Komi),
		WhiteScore:          w.points(float64(score.White.Prisoners) + score.White.Komi),
		BlackName:           displayName(black, true),
		WhiteName:           displayName(white, true),
		CurrentUsersMove:    toMove != 0 && toMove == w.currentUser,
		InStoneRemovalPhase: e.Phase == gamesession.PhaseStoneRemoval,
		Finished:            e.Phase == gamesession.PhaseFinished,
		clock:               e.Clock,
		toMove:              e.ColorToMove(),
		playing:             e.Phase == gamesession.PhasePlay,
		synced:              true,
	}
	if toMove != 0 && black.ID == toMove {
		st.BlackToMoveCls = "to-move"
	}
	if toMove != 0 && white.ID == toMove {
		st.WhiteToMoveCls = "to-move"
	}
	return st
}

func (w *Widget) points(v float64) string {
	return w.cat.Text("summary.points", map[string]any{"Points": strconv.FormatFloat(v, 'f', -1, 64)})
}
