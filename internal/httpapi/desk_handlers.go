package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/park285/goban-desk/internal/reportview"
	"github.com/park285/goban-desk/pkg/modapi"
)

type deskHandler struct {
	desks  *Desks
	secret []byte
}

func newDeskHandler(d *Desks, secret []byte) *deskHandler {
	return &deskHandler{desks: d, secret: secret}
}

func (h *deskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/desk/{moderator}", func(r chi.Router) {
		r.Use(requireModerator(h.secret))
		r.Get("/report", h.current)
		r.Get("/alerts", h.alerts)
		r.Put("/reports", h.setReports)
		r.Post("/report/{id}", h.show)
		r.Post("/report/{id}/note", h.note)
		r.Post("/report/{id}/assign", h.assign)
		r.Post("/report/{id}/{action}", h.action)
		r.Get("/report/{id}/journal", h.journal)
	})
}

func (h *deskHandler) deskFor(w http.ResponseWriter, r *http.Request) (*desk, bool) {
	id, ok := idParam(r, "moderator")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_moderator", "invalid moderator id")
		return nil, false
	}
	if !h.desks.allows(id) {
		writeError(w, http.StatusForbidden, "foreign_desk", "desk belongs to another moderator")
		return nil, false
	}
	return h.desks.get(id), true
}

func (h *deskHandler) current(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	render(w, r, reportview.Render(dk.viewer.View()))
}

func (h *deskHandler) alerts(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	out := dk.alerts.Drain()
	if out == nil {
		out = []reportview.Alert{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *deskHandler) setReports(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	var ids []int64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "expected a JSON array of report ids")
		return
	}
	dk.viewer.SetReports(ids)
	w.WriteHeader(http.StatusNoContent)
}

// show displays the report. Fetch failures are part of the rendered view.
func (h *deskHandler) show(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_report", "invalid report id")
		return
	}
	_ = dk.viewer.Show(r.Context(), id)
	render(w, r, reportview.Render(dk.viewer.View()))
}

// ensureShown brings id onto the viewer before acting on it.
func ensureShown(ctx context.Context, v *reportview.Viewer, id int64) error {
	if v.State().ReportID() == id && v.State().Error == "" {
		return nil
	}
	return v.Show(ctx, id)
}

func (h *deskHandler) action(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_report", "invalid report id")
		return
	}
	ctx := r.Context()
	v := dk.viewer
	acts := map[string]func(context.Context) error{
		"claim":   v.Claim,
		"unclaim": v.Unclaim,
		"good":    v.GoodReport,
		"bad":     v.BadReport,
		"reopen":  v.Reopen,
		"ignore":  v.Ignore,
		"next":    v.Next,
		"prev":    v.Prev,
	}
	act, ok := acts[chi.URLParam(r, "action")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_action", "unknown action")
		return
	}
	if err := ensureShown(ctx, v, id); err != nil {
		writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	if err := act(ctx); err != nil {
		writeActionError(w, err)
		return
	}
	render(w, r, reportview.Render(v.View()))
}

func (h *deskHandler) note(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_report", "invalid report id")
		return
	}
	var body modapi.NoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "expected {\"note\": string}")
		return
	}
	if err := ensureShown(r.Context(), dk.viewer, id); err != nil {
		writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	if err := dk.viewer.EditNote(body.Note); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *deskHandler) assign(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.deskFor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_report", "invalid report id")
		return
	}
	var body modapi.AssignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ModeratorID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "expected {\"moderator_id\": number}")
		return
	}
	if err := ensureShown(r.Context(), dk.viewer, id); err != nil {
		writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	if err := dk.viewer.Assign(r.Context(), body.ModeratorID); err != nil {
		writeActionError(w, err)
		return
	}
	render(w, r, reportview.Render(dk.viewer.View()))
}

func (h *deskHandler) journal(w http.ResponseWriter, r *http.Request) {
	mod, ok := idParam(r, "moderator")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_moderator", "invalid moderator id")
		return
	}
	if !h.desks.allows(mod) {
		writeError(w, http.StatusForbidden, "foreign_desk", "desk belongs to another moderator")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_report", "invalid report id")
		return
	}
	entries, err := h.desks.journal.ForReport(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reportview.ErrNotAllowed):
		writeError(w, http.StatusConflict, "not_allowed", err.Error())
	case errors.Is(err, reportview.ErrSaveBusy):
		writeError(w, http.StatusConflict, "save_busy", err.Error())
	case errors.Is(err, reportview.ErrNoReport):
		writeError(w, http.StatusNotFound, "no_report", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "request_failed", err.Error())
	}
}
