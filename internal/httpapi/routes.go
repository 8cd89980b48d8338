package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/park285/goban-desk/internal/gamesession"
	"github.com/park285/goban-desk/internal/linesummary"
	"github.com/park285/goban-desk/internal/miniboard"
	"github.com/park285/goban-desk/internal/msgcat"
)

// Deps is everything the router serves from.
type Deps struct {
	Sessions gamesession.Opener
	Board    *miniboard.Renderer
	Catalog  *msgcat.Catalog
	Desks    *Desks
	// DeskSecret signs desk bearer tokens; empty leaves the desk open.
	DeskSecret []byte

	// Scheduler defers line summary session opens; nil waits one frame.
	Scheduler linesummary.Scheduler
	// BoardWait bounds how long board.png waits for the first game state.
	BoardWait time.Duration
	// KeepAlive is the SSE comment interval.
	KeepAlive time.Duration
}

func NewRouter(d Deps) chi.Router {
	if d.Catalog == nil {
		d.Catalog = msgcat.MustDefault()
	}
	if d.Board == nil {
		d.Board = miniboard.NewRenderer()
	}
	if d.Scheduler == nil {
		d.Scheduler = linesummary.FrameScheduler{}
	}
	if d.BoardWait <= 0 {
		d.BoardWait = 3 * time.Second
	}
	if d.KeepAlive <= 0 {
		d.KeepAlive = 25 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if d.Sessions != nil {
		newGameHandler(d).RegisterRoutes(r)
	}
	if d.Desks != nil {
		newDeskHandler(d.Desks, d.DeskSecret).RegisterRoutes(r)
	}
	return r
}
