package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/park285/goban-desk/internal/gamesession"
	"github.com/park285/goban-desk/internal/linesummary"
	"github.com/park285/goban-desk/internal/miniboard"
	"github.com/park285/goban-desk/internal/msgcat"
	"github.com/park285/goban-desk/internal/obslog"
)

type gameHandler struct {
	sessions  gamesession.Opener
	board     *miniboard.Renderer
	cat       *msgcat.Catalog
	sched     linesummary.Scheduler
	boardWait time.Duration
	keepAlive time.Duration
}

func newGameHandler(d Deps) *gameHandler {
	return &gameHandler{
		sessions:  d.Sessions,
		board:     d.Board,
		cat:       d.Catalog,
		sched:     d.Scheduler,
		boardWait: d.BoardWait,
		keepAlive: d.KeepAlive,
	}
}

func (h *gameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/games/{id}", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/board.png", h.boardPNG)
	})
}

// summaryProps builds widget props from the query:
// player, mode, black, white, black_name, white_name, black_rank,
// white_rank, width, height.
func summaryProps(gameID int64, q url.Values) linesummary.Props {
	user := func(side string) linesummary.User {
		u := linesummary.User{Username: q.Get(side + "_name")}
		u.ID, _ = strconv.ParseInt(q.Get(side), 10, 64)
		if rank, err := strconv.Atoi(q.Get(side + "_rank")); err == nil {
			u.Ranking = &rank
		}
		u.Professional = q.Get(side+"_pro") == "1"
		return u
	}
	p := linesummary.Props{
		GameID: gameID,
		Black:  user("black"),
		White:  user("white"),
		Mode:   linesummary.ModeBothPlayers,
	}
	if linesummary.Mode(q.Get("mode")) == linesummary.ModeOpponentOnly {
		p.Mode = linesummary.ModeOpponentOnly
	}
	if id, err := strconv.ParseInt(q.Get("player"), 10, 64); err == nil && id > 0 {
		viewer := linesummary.User{ID: id}
		switch id {
		case p.Black.ID:
			viewer = p.Black
		case p.White.ID:
			viewer = p.White
		}
		p.Player = &viewer
	}
	p.Width, _ = strconv.Atoi(q.Get("width"))
	p.Height, _ = strconv.Atoi(q.Get("height"))
	return p
}

// summary streams the rendered line summary, one event per game update.
// The widget holds its session only while the client is connected.
func (h *gameHandler) summary(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_game", "invalid game id")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	props := summaryProps(gameID, r.URL.Query())
	changed := make(chan struct{}, 1)
	opts := []linesummary.Option{
		linesummary.WithScheduler(h.sched),
		linesummary.WithCatalog(h.cat),
		linesummary.WithOnChange(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	}
	if props.Player != nil {
		opts = append(opts, linesummary.WithCurrentUser(props.Player.ID))
	}
	widget := linesummary.New(h.sessions, props, opts...)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	widget.Mount()
	defer widget.Unmount()

	send := func() {
		writeSSE(w, "summary", renderToString(r, linesummary.Render(widget.View())))
		flusher.Flush()
	}
	send()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			send()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *gameHandler) boardPNG(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_game", "invalid game id")
		return
	}
	sess, err := h.sessions.Open(gameID, gamesession.DisplayOptions{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_game", err.Error())
		return
	}
	defer sess.Destroy()

	ctx, cancel := context.WithTimeout(r.Context(), h.boardWait)
	defer cancel()
	e := waitLoaded(ctx, sess)

	png, err := h.board.RenderPNG(r.Context(), e, queryInt(r, "size", miniboard.DefaultSize))
	if errors.Is(err, miniboard.ErrNotLoaded) {
		writeError(w, http.StatusServiceUnavailable, "not_loaded", "game state not available yet")
		return
	}
	if err != nil {
		obslog.L().Error("board_render_failed", zap.Int64("game_id", gameID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render_failed", "failed to render board")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// waitLoaded returns the session's engine once it holds game state, or
// whatever it has when ctx ends.
func waitLoaded(ctx context.Context, sess *gamesession.Session) gamesession.Engine {
	updated := make(chan struct{}, 1)
	id := sess.On(gamesession.EventUpdate, func() {
		select {
		case updated <- struct{}{}:
		default:
		}
	})
	defer sess.Off(id)
	for {
		e := sess.Engine()
		if e.Loaded {
			return e
		}
		select {
		case <-ctx.Done():
			return e
		case <-updated:
		}
	}
}
