package httpapi

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/goban-desk/internal/msgcat"
	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/internal/reports"
	"github.com/park285/goban-desk/internal/reportview"
	"github.com/park285/goban-desk/internal/roster"
)

// ServiceFactory returns the report service acting as moderatorID.
type ServiceFactory func(moderatorID int64) reportview.Service

type DeskOption func(*Desks)

func WithDeskRoster(c *roster.Cache) DeskOption { return func(d *Desks) { d.roster = c } }

func WithDeskCatalog(c *msgcat.Catalog) DeskOption { return func(d *Desks) { d.cat = c } }

// WithDeskOwner limits the desk to moderatorID, the account whose
// credentials the service factory's client and socket carry.
func WithDeskOwner(moderatorID int64) DeskOption { return func(d *Desks) { d.owner = moderatorID } }

func WithNotePolicy(p reportview.Policy, delay time.Duration) DeskOption {
	return func(d *Desks) {
		d.policy = p
		d.delay = delay
	}
}

// Desks keeps one report viewer per moderator, created on first use.
type Desks struct {
	newService ServiceFactory
	journal    reports.Journal
	roster     *roster.Cache
	cat        *msgcat.Catalog
	policy     reportview.Policy
	delay      time.Duration
	owner      int64

	mu    sync.Mutex
	desks map[int64]*desk
}

type desk struct {
	viewer *reportview.Viewer
	alerts *reportview.Alerts
}

func NewDesks(f ServiceFactory, j reports.Journal, opts ...DeskOption) *Desks {
	d := &Desks{
		newService: f,
		journal:    j,
		policy:     reportview.PolicyPerReport,
		delay:      reportview.DefaultNoteDelay,
		desks:      make(map[int64]*desk),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cat == nil {
		d.cat = msgcat.MustDefault()
	}
	if d.journal == nil {
		d.journal = reports.NewMemoryJournal()
	}
	return d
}

// allows reports whether moderatorID may open a desk. Without an owner
// every moderator id is accepted.
func (d *Desks) allows(moderatorID int64) bool {
	return d.owner == 0 || moderatorID == d.owner
}

func (d *Desks) get(moderatorID int64) *desk {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dk, ok := d.desks[moderatorID]; ok {
		return dk
	}
	svc := d.newService(moderatorID)
	alerts := &reportview.Alerts{}
	saver := reportview.NewNoteSaver(svc.Note, alerts,
		reportview.WithPolicy(d.policy),
		reportview.WithDelay(d.delay),
		reportview.WithBusyMessage(func(pending int64) string {
			return d.cat.Text("report.note_busy", map[string]any{"Pending": pending})
		}),
	)
	opts := []reportview.Option{
		reportview.WithAlerter(alerts),
		reportview.WithCatalog(d.cat),
		reportview.WithNoteSaver(saver),
	}
	if d.roster != nil {
		opts = append(opts, reportview.WithRoster(d.roster))
	}
	dk := &desk{
		viewer: reportview.New(svc, reportview.User{ID: moderatorID, IsModerator: true}, opts...),
		alerts: alerts,
	}
	d.desks[moderatorID] = dk
	obslog.L().Info("report_desk_opened", zap.Int64("moderator_id", moderatorID), zap.String("note_policy", string(d.policy)))
	return dk
}

// Close closes every viewer, saving pending notes.
func (d *Desks) Close() {
	d.mu.Lock()
	desks := d.desks
	d.desks = make(map[int64]*desk)
	d.mu.Unlock()
	for _, dk := range desks {
		dk.viewer.Close()
	}
}
