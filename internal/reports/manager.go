package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/internal/realtime"
	"github.com/park285/goban-desk/internal/requests"
	"github.com/park285/goban-desk/pkg/modapi"
	"go.uber.org/zap"
)

const (
	EventIncidentReport = "incident-report"
	actionPath          = "moderation/incident/%%"
)

// HTTP is the request helper the manager issues calls through.
type HTTP interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, id int64, body any, out any) error
}

// Manager fetches reports, relays incident-report pushes and issues
// moderator actions. Every action is journaled.
type Manager struct {
	http        HTTP
	rt          realtime.Transport
	journal     Journal
	moderatorID int64
	now         func() time.Time

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(*Report)
	rtHandler int
}

func NewManager(h HTTP, rt realtime.Transport, j Journal, moderatorID int64) *Manager {
	if j == nil {
		j = NewMemoryJournal()
	}
	return &Manager{
		http:        h,
		rt:          rt,
		journal:     j,
		moderatorID: moderatorID,
		now:         time.Now,
		listeners:   make(map[int]func(*Report)),
	}
}

func (m *Manager) ModeratorID() int64 { return m.moderatorID }

func (m *Manager) Journal() Journal { return m.journal }

func (m *Manager) GetReport(ctx context.Context, id int64) (*Report, error) {
	var r Report
	if err := m.http.Get(ctx, fmt.Sprintf("moderation/incident/%d", id), &r); err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &r, nil
}

// On registers fn for incident-report pushes. The realtime handler is
// attached with the first listener and detached with the last.
func (m *Manager) On(fn func(*Report)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners[m.nextID] = fn
	if m.rtHandler == 0 && m.rt != nil {
		m.rtHandler = m.rt.On(EventIncidentReport, m.dispatch)
	}
	return m.nextID
}

func (m *Manager) Off(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
	if len(m.listeners) == 0 && m.rtHandler != 0 {
		m.rt.Off(m.rtHandler)
		m.rtHandler = 0
	}
}

func (m *Manager) dispatch(raw json.RawMessage) {
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		obslog.L().Warn("incident_report_decode_failed", zap.Error(err))
		return
	}
	m.mu.Lock()
	fns := make([]func(*Report), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		cp := r
		fn(&cp)
	}
}

func (m *Manager) Claim(ctx context.Context, id int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionClaim})
}

func (m *Manager) Unclaim(ctx context.Context, id int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionUnclaim})
}

func (m *Manager) GoodReport(ctx context.Context, id int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionGood})
}

func (m *Manager) BadReport(ctx context.Context, id int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionBad})
}

func (m *Manager) Ignore(ctx context.Context, id int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionIgnore})
}

func (m *Manager) Reopen(ctx context.Context, id int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionReopen})
}

// Note posts the full note text.
func (m *Manager) Note(ctx context.Context, id int64, text string) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionNote, Note: &text})
}

func (m *Manager) Assign(ctx context.Context, id int64, moderatorID int64) error {
	return m.act(ctx, id, modapi.ActionRequest{ID: id, Action: ActionAssign, ModeratorID: moderatorID})
}

func (m *Manager) act(ctx context.Context, id int64, req modapi.ActionRequest) error {
	requestID := uuid.NewString()
	err := m.http.Post(requests.WithRequestID(ctx, requestID), actionPath, id, req, nil)
	fields := []zap.Field{
		zap.Int64("report_id", id),
		zap.String("action", req.Action),
		zap.String("request_id", requestID),
	}
	if err != nil {
		obslog.L().Warn("report_action_failed", append(fields, zap.Error(err))...)
		return fmt.Errorf("%s report %d: %w", req.Action, id, err)
	}
	obslog.L().Info("report_action", fields...)

	entry := Entry{
		RequestID:   requestID,
		ReportID:    id,
		ModeratorID: m.moderatorID,
		Action:      req.Action,
		AssignedTo:  req.ModeratorID,
		At:          m.now(),
	}
	if req.Note != nil {
		entry.Note = *req.Note
	}
	if jerr := m.journal.Record(ctx, entry); jerr != nil {
		obslog.L().Warn("report_journal_failed", append(fields, zap.Error(jerr))...)
	}
	return nil
}
