package reportview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/park285/goban-desk/internal/obslog"
	"go.uber.org/zap"
)

// Policy decides what an edit to a second report does while the first
// report's note is still waiting to be saved.
type Policy string

const (
	// PolicyPerReport debounces every report independently.
	PolicyPerReport Policy = "per-report"
	// PolicyBlock warns and drops the second report's save.
	PolicyBlock Policy = "block"
	// PolicyQueue starts the second report's debounce once the first is saved.
	PolicyQueue Policy = "queue"
	// PolicyFlushAndSwitch saves the first report at once and debounces the second.
	PolicyFlushAndSwitch Policy = "flush-and-switch"
)

const DefaultNoteDelay = 250 * time.Millisecond

var ErrSaveBusy = errors.New("another report's note is still being saved")

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyPerReport, PolicyBlock, PolicyQueue, PolicyFlushAndSwitch:
		return p, nil
	case "":
		return PolicyPerReport, nil
	}
	return "", fmt.Errorf("unknown note save policy %q", s)
}

// Timer is the part of *time.Timer the saver uses.
type Timer interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type PostNoteFunc func(ctx context.Context, reportID int64, text string) error

type pendingNote struct {
	text  string
	seq   int
	timer Timer
	// fired while an earlier save for the same report was in flight
	held bool
}

// NoteSaver posts moderator notes after DefaultNoteDelay without further
// edits. At most one save per report is in flight.
type NoteSaver struct {
	post    PostNoteFunc
	alert   Alerter
	policy  Policy
	delay   time.Duration
	after   AfterFunc
	timeout time.Duration
	busyMsg func(pending int64) string

	mu       sync.Mutex
	seq      int
	pending  map[int64]*pendingNote
	inflight map[int64]bool
	queue    []int64
	queued   map[int64]string
}

type SaverOption func(*NoteSaver)

func WithPolicy(p Policy) SaverOption { return func(s *NoteSaver) { s.policy = p } }

func WithDelay(d time.Duration) SaverOption {
	return func(s *NoteSaver) {
		if d > 0 {
			s.delay = d
		}
	}
}

func WithAfterFunc(f AfterFunc) SaverOption { return func(s *NoteSaver) { s.after = f } }

func WithBusyMessage(f func(int64) string) SaverOption { return func(s *NoteSaver) { s.busyMsg = f } }

func NewNoteSaver(post PostNoteFunc, alert Alerter, opts ...SaverOption) *NoteSaver {
	s := &NoteSaver{
		post:     post,
		alert:    alert,
		policy:   PolicyPerReport,
		delay:    DefaultNoteDelay,
		after:    realAfterFunc,
		timeout:  10 * time.Second,
		pending:  make(map[int64]*pendingNote),
		inflight: make(map[int64]bool),
		queued:   make(map[int64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alert == nil {
		s.alert = LogAlerter{}
	}
	if s.busyMsg == nil {
		s.busyMsg = func(id int64) string { return fmt.Sprintf("already saving an update for report %d", id) }
	}
	return s
}

func (s *NoteSaver) Policy() Policy { return s.policy }

// Edit records the full note text for reportID and (re)starts its debounce.
func (s *NoteSaver) Edit(reportID int64, text string) error {
	s.mu.Lock()
	other := s.otherPendingLocked(reportID)
	if other == 0 || s.policy == PolicyPerReport {
		s.scheduleLocked(reportID, text)
		s.mu.Unlock()
		return nil
	}

	switch s.policy {
	case PolicyBlock:
		s.mu.Unlock()
		obslog.L().Warn("report_note_save_blocked", zap.Int64("report_id", reportID), zap.Int64("pending_report_id", other))
		s.alert.Warn(s.busyMsg(other))
		return ErrSaveBusy
	case PolicyQueue:
		if _, ok := s.queued[reportID]; !ok {
			s.queue = append(s.queue, reportID)
		}
		s.queued[reportID] = text
		s.mu.Unlock()
		return nil
	default: // PolicyFlushAndSwitch
		flush := s.flushLocked(other)
		s.scheduleLocked(reportID, text)
		s.mu.Unlock()
		if flush != nil {
			s.save(other, flush.text)
		}
		return nil
	}
}

// Pending reports whether reportID has unsaved text.
func (s *NoteSaver) Pending(reportID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, p := s.pending[reportID]
	_, q := s.queued[reportID]
	return p || q
}

// Flush saves everything still waiting, queued notes included.
func (s *NoteSaver) Flush() {
	s.mu.Lock()
	type item struct {
		id   int64
		text string
	}
	var items []item
	for id := range s.pending {
		if p := s.flushLocked(id); p != nil {
			items = append(items, item{id, p.text})
		}
	}
	for _, id := range s.queue {
		if s.inflight[id] {
			s.scheduleLocked(id, s.queued[id])
			s.pending[id].held = true
			continue
		}
		s.inflight[id] = true
		items = append(items, item{id, s.queued[id]})
	}
	s.queue = nil
	s.queued = make(map[int64]string)
	s.mu.Unlock()

	for _, it := range items {
		s.save(it.id, it.text)
	}
}

func (s *NoteSaver) otherPendingLocked(reportID int64) int64 {
	for id := range s.pending {
		if id != reportID {
			return id
		}
	}
	for id := range s.inflight {
		if id != reportID && s.policy != PolicyFlushAndSwitch {
			return id
		}
	}
	return 0
}

func (s *NoteSaver) scheduleLocked(reportID int64, text string) {
	if p, ok := s.pending[reportID]; ok && p.timer != nil {
		p.timer.Stop()
	}
	s.seq++
	seq := s.seq
	p := &pendingNote{text: text, seq: seq}
	s.pending[reportID] = p
	p.timer = s.after(s.delay, func() { s.fire(reportID, seq) })
}

// flushLocked claims reportID's pending note for an immediate save. While
// an earlier save for it is in flight the note is held for that save's
// completion instead.
func (s *NoteSaver) flushLocked(reportID int64) *pendingNote {
	if s.inflight[reportID] {
		if p, ok := s.pending[reportID]; ok {
			if p.timer != nil {
				p.timer.Stop()
			}
			p.held = true
		}
		return nil
	}
	p := s.takeLocked(reportID)
	if p != nil {
		s.inflight[reportID] = true
	}
	return p
}

func (s *NoteSaver) takeLocked(reportID int64) *pendingNote {
	p, ok := s.pending[reportID]
	if !ok {
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.pending, reportID)
	return p
}

func (s *NoteSaver) fire(reportID int64, seq int) {
	s.mu.Lock()
	p, ok := s.pending[reportID]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	if s.inflight[reportID] {
		p.held = true
		s.mu.Unlock()
		return
	}
	delete(s.pending, reportID)
	s.inflight[reportID] = true
	s.mu.Unlock()
	s.save(reportID, p.text)
}

// save posts text; the caller has already marked reportID in flight.
func (s *NoteSaver) save(reportID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	err := s.post(ctx, reportID, text)
	cancel()
	if err != nil {
		s.alert.Error(err)
	}

	s.mu.Lock()
	delete(s.inflight, reportID)
	var resend *pendingNote
	if p, ok := s.pending[reportID]; ok && p.held {
		resend = p
	}
	var next int64
	if resend == nil && s.policy == PolicyQueue && len(s.pending) == 0 && len(s.queue) > 0 {
		next = s.queue[0]
		s.queue = s.queue[1:]
		text := s.queued[next]
		delete(s.queued, next)
		s.scheduleLocked(next, text)
	}
	s.mu.Unlock()

	if resend != nil {
		s.fire(reportID, resend.seq)
	}
}
