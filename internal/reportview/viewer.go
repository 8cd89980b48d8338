package reportview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/goban-desk/internal/msgcat"
	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/internal/reports"
	"github.com/park285/goban-desk/internal/roster"
	"go.uber.org/zap"
)

var (
	ErrNoReport   = errors.New("no report displayed")
	ErrNotAllowed = errors.New("action not available")
)

// Service is what the viewer needs from the report manager.
type Service interface {
	GetReport(ctx context.Context, id int64) (*reports.Report, error)
	On(fn func(*reports.Report)) int
	Off(id int)
	Claim(ctx context.Context, id int64) error
	Unclaim(ctx context.Context, id int64) error
	GoodReport(ctx context.Context, id int64) error
	BadReport(ctx context.Context, id int64) error
	Ignore(ctx context.Context, id int64) error
	Reopen(ctx context.Context, id int64) error
	Note(ctx context.Context, id int64, text string) error
	Assign(ctx context.Context, id int64, moderatorID int64) error
}

// User is the moderator operating the viewer.
type User struct {
	ID          int64
	Username    string
	IsModerator bool
}

type Option func(*Viewer)

func WithRoster(c *roster.Cache) Option { return func(v *Viewer) { v.roster = c } }

func WithAlerter(a Alerter) Option { return func(v *Viewer) { v.alert = a } }

func WithCatalog(c *msgcat.Catalog) Option { return func(v *Viewer) { v.cat = c } }

// WithNoteSaver shares a saver between viewers of one moderator.
func WithNoteSaver(s *NoteSaver) Option { return func(v *Viewer) { v.notes = s } }

// WithOnChange is told which report the viewer moved to; 0 means none left.
func WithOnChange(fn func(id int64)) Option { return func(v *Viewer) { v.onChange = fn } }

func withNow(now func() time.Time) Option { return func(v *Viewer) { v.now = now } }

// Viewer is one moderator's report screen.
type Viewer struct {
	svc      Service
	me       User
	roster   *roster.Cache
	alert    Alerter
	notes    *NoteSaver
	cat      *msgcat.Catalog
	onChange func(int64)
	now      func() time.Time
	listener int

	mu         sync.Mutex
	gen        int
	requested  int64
	reports    []int64
	state      State
	moderators []roster.Moderator
	noteFocus  bool
	closed     bool
}

func New(svc Service, me User, opts ...Option) *Viewer {
	v := &Viewer{svc: svc, me: me, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	if v.alert == nil {
		v.alert = LogAlerter{}
	}
	if v.cat == nil {
		v.cat = msgcat.MustDefault()
	}
	if v.notes == nil {
		v.notes = NewNoteSaver(svc.Note, v.alert, WithBusyMessage(v.busyMessage))
	}
	v.listener = svc.On(v.onPush)
	return v
}

func (v *Viewer) busyMessage(pending int64) string {
	return v.cat.Text("report.note_busy", map[string]any{"Pending": pending})
}

// Close detaches from the report stream and saves pending notes.
func (v *Viewer) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.gen++
	v.mu.Unlock()
	v.svc.Off(v.listener)
	v.notes.Flush()
}

func (v *Viewer) Me() User { return v.me }

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SetReports replaces the ordered list next and previous walk.
func (v *Viewer) SetReports(ids []int64) {
	v.mu.Lock()
	v.reports = append([]int64(nil), ids...)
	v.mu.Unlock()
}

func (v *Viewer) Reports() []int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int64(nil), v.reports...)
}

// Show fetches and displays id; 0 clears the view. A completion for an
// id that is no longer requested is dropped.
func (v *Viewer) Show(ctx context.Context, id int64) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.requested = id
	if id == 0 {
		v.state = reduce(v.state, evCleared{})
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	r, err := v.svc.GetReport(ctx, id)

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		obslog.L().Debug("report_fetch_stale", zap.Int64("report_id", id))
		return nil
	}
	if err != nil {
		v.state = reduce(v.state, evFetchFailed{err: err})
		v.mu.Unlock()
		obslog.L().Error("report_fetch_failed", zap.Int64("report_id", id), zap.Error(err))
		v.alert.Error(err)
		return err
	}
	v.state = reduce(v.state, evFetched{report: r})
	v.mu.Unlock()

	v.loadRoster(ctx)
	return nil
}

func (v *Viewer) loadRoster(ctx context.Context) {
	if v.roster == nil || !v.me.IsModerator {
		return
	}
	mods, err := v.roster.Load(ctx, v.me.ID)
	if err != nil {
		v.alert.Error(err)
		return
	}
	v.mu.Lock()
	v.moderators = mods
	v.mu.Unlock()
}

func (v *Viewer) onPush(r *reports.Report) {
	v.mu.Lock()
	if v.closed || r == nil {
		v.mu.Unlock()
		return
	}
	editing := v.noteFocus
	if id := v.state.ReportID(); id != 0 && id == r.ID {
		editing = editing || v.notes.Pending(id)
	}
	v.state = reduce(v.state, evPushed{report: r, editing: editing})
	v.mu.Unlock()
}

// FocusNote marks the note field as being edited so pushes keep the
// local text.
func (v *Viewer) FocusNote(focused bool) {
	v.mu.Lock()
	v.noteFocus = focused
	v.mu.Unlock()
}
