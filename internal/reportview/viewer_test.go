package reportview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/goban-desk/internal/reports"
	"github.com/park285/goban-desk/internal/roster"
	"github.com/park285/goban-desk/pkg/modapi"
)

type call struct {
	action string
	id     int64
	arg    string
}

type fakeService struct {
	mu        sync.Mutex
	reports   map[int64]*reports.Report
	gates     map[int64]chan struct{}
	entered   chan int64
	fetchErr  error
	actionErr error
	calls     []call
	listeners map[int]func(*reports.Report)
	nextID    int
}

func newFakeService(rs ...*reports.Report) *fakeService {
	f := &fakeService{reports: map[int64]*reports.Report{}, gates: map[int64]chan struct{}{}, entered: make(chan int64, 4), listeners: map[int]func(*reports.Report){}}
	for _, r := range rs {
		f.reports[r.ID] = r
	}
	return f
}

func (f *fakeService) GetReport(_ context.Context, id int64) (*reports.Report, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()
	if gate != nil {
		f.entered <- id
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d not found", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeService) On(fn func(*reports.Report)) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.listeners[f.nextID] = fn
	return f.nextID
}

func (f *fakeService) Off(id int) {
	f.mu.Lock()
	delete(f.listeners, id)
	f.mu.Unlock()
}

func (f *fakeService) push(r *reports.Report) {
	f.mu.Lock()
	var fns []func(*reports.Report)
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		cp := *r
		fn(&cp)
	}
}

func (f *fakeService) record(action string, id int64, arg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{action, id, arg})
	return f.actionErr
}

func (f *fakeService) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeService) Claim(_ context.Context, id int64) error   { return f.record("claim", id, "") }
func (f *fakeService) Unclaim(_ context.Context, id int64) error { return f.record("unclaim", id, "") }
func (f *fakeService) GoodReport(_ context.Context, id int64) error {
	return f.record("good_report", id, "")
}
func (f *fakeService) BadReport(_ context.Context, id int64) error {
	return f.record("bad_report", id, "")
}
func (f *fakeService) Ignore(_ context.Context, id int64) error { return f.record("ignore", id, "") }
func (f *fakeService) Reopen(_ context.Context, id int64) error { return f.record("reopen", id, "") }
func (f *fakeService) Note(_ context.Context, id int64, text string) error {
	return f.record("note", id, text)
}
func (f *fakeService) Assign(_ context.Context, id int64, mod int64) error {
	return f.record("assign", id, fmt.Sprint(mod))
}

type fakeTimer struct {
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(_ time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Elapse fires every live timer once.
func (c *fakeClock) Elapse() {
	c.mu.Lock()
	ts := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range ts {
		if !t.stopped && !t.fired {
			t.fired = true
			t.fn()
		}
	}
}

var me = User{ID: 7, Username: "mod", IsModerator: true}

func report(id int64, state string, mod int64) *reports.Report {
	r := &reports.Report{ID: id, State: state, ReportType: "stalling"}
	if mod != 0 {
		r.Moderator = &modapi.PlayerRef{ID: mod, Username: fmt.Sprintf("m%d", mod)}
	}
	return r
}

type desk struct {
	svc    *fakeService
	alerts *Alerts
	clock  *fakeClock
	v      *Viewer
	moves  []int64
}

func newDesk(t *testing.T, policy Policy, rs ...*reports.Report) *desk {
	t.Helper()
	d := &desk{svc: newFakeService(rs...), alerts: &Alerts{}, clock: &fakeClock{}}
	saver := NewNoteSaver(d.svc.Note, d.alerts, WithPolicy(policy), WithAfterFunc(d.clock.AfterFunc))
	d.v = New(d.svc, me, WithAlerter(d.alerts), WithNoteSaver(saver), WithOnChange(func(id int64) { d.moves = append(d.moves, id) }))
	t.Cleanup(d.v.Close)
	return d
}

func (d *desk) show(t *testing.T, id int64) {
	t.Helper()
	if err := d.v.Show(context.Background(), id); err != nil {
		t.Fatalf("Show(%d): %v", id, err)
	}
}

func TestNeighbors(t *testing.T) {
	ids := []int64{101, 102, 103}
	cases := []struct{ cur, prev, next int64 }{
		{102, 101, 103},
		{103, 102, 0},
		{101, 0, 102},
		{999, 0, 0},
	}
	for _, tc := range cases {
		p, n := Neighbors(ids, tc.cur)
		if p != tc.prev || n != tc.next {
			t.Fatalf("Neighbors(%d) = %d,%d want %d,%d", tc.cur, p, n, tc.prev, tc.next)
		}
	}
}

func TestNextAndPrevWalkTheList(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0), report(2, "pending", 0), report(3, "pending", 0))
	d.v.SetReports([]int64{1, 2, 3})
	d.show(t, 2)
	ctx := context.Background()

	_ = d.v.Next(ctx)
	if got := d.v.State().ReportID(); got != 3 {
		t.Fatalf("after next = %d", got)
	}
	_ = d.v.Prev(ctx)
	if got := d.v.State().ReportID(); got != 2 {
		t.Fatalf("after prev = %d", got)
	}
	_ = d.v.Next(ctx)
	_ = d.v.Next(ctx)
	if got := d.v.State().ReportID(); got != 0 {
		t.Fatalf("next past the end should clear, got %d", got)
	}
	if fmt.Sprint(d.moves) != "[3 2 3 0]" {
		t.Fatalf("moves = %v", d.moves)
	}
	if !d.v.View().Empty {
		t.Fatalf("view should be empty")
	}
}

func TestPrevAtStartDoesNothing(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.v.SetReports([]int64{1})
	d.show(t, 1)
	_ = d.v.Prev(context.Background())
	if d.v.State().ReportID() != 1 || len(d.moves) != 0 {
		t.Fatalf("prev at start moved the view")
	}
}

func TestResolveAndIgnoreAdvance(t *testing.T) {
	for _, action := range []string{"good", "bad", "ignore"} {
		t.Run(action, func(t *testing.T) {
			d := newDesk(t, PolicyPerReport, report(1, "claimed", me.ID), report(2, "pending", 0))
			d.v.SetReports([]int64{1, 2})
			d.show(t, 1)
			ctx := context.Background()
			act := map[string]func(context.Context) error{"good": d.v.GoodReport, "bad": d.v.BadReport, "ignore": d.v.Ignore}[action]
			if action == "ignore" {
				// ignoring is for reports someone else holds
				d.svc.reports[1] = report(1, "claimed", 99)
				d.show(t, 1)
			}
			if err := act(ctx); err != nil {
				t.Fatalf("%s: %v", action, err)
			}
			if got := d.v.State().ReportID(); got != 2 {
				t.Fatalf("advanced to %d", got)
			}
			if err := act(ctx); err != nil && !errors.Is(err, ErrNotAllowed) {
				t.Fatalf("second %s: %v", action, err)
			}
		})
	}
}

func TestResolveLastReportClearsView(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(5, "claimed", me.ID))
	d.v.SetReports([]int64{5})
	d.show(t, 5)
	if err := d.v.GoodReport(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.v.State().ReportID() != 0 || d.moves[len(d.moves)-1] != 0 {
		t.Fatalf("view not cleared: %+v moves=%v", d.v.State(), d.moves)
	}
}

func TestClaimIsOptimisticUntilServerUpdate(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.show(t, 1)
	if err := d.v.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	st := d.v.State()
	if st.EffectiveState() != reports.StateClaimed || st.EffectiveModeratorID() != me.ID {
		t.Fatalf("overlay not applied: %+v", st)
	}
	if st.Confirmed.Moderator != nil {
		t.Fatalf("confirmed record was mutated")
	}
	if a := d.v.Actions(); !a.Good || !a.Unclaim || a.Claim || a.Ignore {
		t.Fatalf("actions after claim = %+v", a)
	}

	// the server disagrees: someone else got it first
	d.svc.push(report(1, "claimed", 42))
	st = d.v.State()
	if st.EffectiveModeratorID() != 42 {
		t.Fatalf("server update should win, got moderator %d", st.EffectiveModeratorID())
	}
	if a := d.v.Actions(); a.Good || a.Claim || !a.Ignore {
		t.Fatalf("actions after push = %+v", a)
	}
}

func TestPushForOtherReportIgnored(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.show(t, 1)
	d.svc.push(report(2, "resolved", 3))
	if d.v.State().ReportID() != 1 || d.v.State().EffectiveState() != "pending" {
		t.Fatalf("state = %+v", d.v.State())
	}
}

func TestUnclaimOnlyForClaimant(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "claimed", 42))
	d.show(t, 1)
	if err := d.v.Unclaim(context.Background()); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("err = %v", err)
	}
	if len(d.svc.Calls()) != 0 {
		t.Fatalf("request issued for a disallowed action")
	}
}

func TestUnclaimKeepsClaimedWhileServerHoldsModerator(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "claimed", me.ID), report(2, "pending", 0))
	d.show(t, 1)
	_ = d.v.Unclaim(context.Background())
	if got := d.v.State().EffectiveState(); got != reports.StateClaimed {
		t.Fatalf("state = %q", got)
	}

	d.show(t, 2)
	_ = d.v.Claim(context.Background())
	_ = d.v.Unclaim(context.Background())
	if got := d.v.State().EffectiveState(); got != reports.StatePending {
		t.Fatalf("state after claim+unclaim = %q", got)
	}
}

func TestActionFailureAlertsAndKeepsOverlay(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.show(t, 1)
	d.svc.actionErr = errors.New("503")
	if err := d.v.Claim(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if d.v.State().EffectiveState() != reports.StateClaimed {
		t.Fatalf("overlay rolled back")
	}
	alerts := d.alerts.Drain()
	if len(alerts) != 1 || alerts[0].Level != "error" {
		t.Fatalf("alerts = %+v", alerts)
	}
}

func TestAssignAndReopen(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "resolved", 3))
	d.show(t, 1)
	if err := d.v.Assign(context.Background(), 11); err != nil {
		t.Fatal(err)
	}
	if d.v.State().EffectiveModeratorID() != 11 || d.v.State().EffectiveState() != reports.StateResolved {
		t.Fatalf("assign changed more than the moderator")
	}
	if err := d.v.Reopen(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := d.svc.Calls()
	if len(calls) != 2 || calls[0] != (call{"assign", 1, "11"}) || calls[1].action != "reopen" {
		t.Fatalf("calls = %+v", calls)
	}
}

type countingGetter struct{ n int }

func (g *countingGetter) Get(_ context.Context, _ string, out any) error {
	g.n++
	*out.(*modapi.PlayerPage) = modapi.PlayerPage{Results: []modapi.PlayerRef{{ID: 9, Username: "zed"}, {ID: 7, Username: "mod"}}}
	return nil
}

func TestFetchFailureShowsErrorAndSkipsRoster(t *testing.T) {
	g := &countingGetter{}
	svc := newFakeService()
	svc.fetchErr = errors.New("boom")
	alerts := &Alerts{}
	v := New(svc, me, WithAlerter(alerts), WithRoster(roster.NewCache(g)))
	defer v.Close()

	if err := v.Show(context.Background(), 1); err == nil {
		t.Fatalf("expected error")
	}
	if v.View().Error != "boom" {
		t.Fatalf("view error = %q", v.View().Error)
	}
	if g.n != 0 {
		t.Fatalf("roster fetched after failed report fetch")
	}
	if len(alerts.Drain()) != 1 {
		t.Fatalf("failure not alerted")
	}
}

func TestActionsBlockedBehindFetchError(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0), report(3, "pending", 0))
	d.v.SetReports([]int64{1, 2, 3})
	d.show(t, 1)
	if err := d.v.Show(context.Background(), 2); err == nil {
		t.Fatalf("expected fetch error for report 2")
	}
	ctx := context.Background()
	acts := map[string]func() error{
		"claim":  func() error { return d.v.Claim(ctx) },
		"ignore": func() error { return d.v.Ignore(ctx) },
		"assign": func() error { return d.v.Assign(ctx, 9) },
		"note":   func() error { return d.v.EditNote("x") },
		"next":   func() error { return d.v.Next(ctx) },
		"prev":   func() error { return d.v.Prev(ctx) },
	}
	for name, act := range acts {
		if err := act(); !errors.Is(err, ErrNoReport) {
			t.Fatalf("%s behind error panel: err=%v", name, err)
		}
	}
	if calls := d.svc.Calls(); len(calls) != 0 {
		t.Fatalf("requests issued for the hidden report: %+v", calls)
	}
	if v := d.v.View(); v.Error == "" || v.Actions != (Actions{}) {
		t.Fatalf("view = %+v", v)
	}
	d.show(t, 3)
	if err := d.v.Claim(ctx); err != nil {
		t.Fatalf("claim after recovery: %v", err)
	}
}

func TestRosterFetchedOnceAcrossViewers(t *testing.T) {
	g := &countingGetter{}
	cache := roster.NewCache(g)
	svc := newFakeService(report(1, "pending", 0))
	for i := 0; i < 3; i++ {
		v := New(svc, me, WithRoster(cache))
		if err := v.Show(context.Background(), 1); err != nil {
			t.Fatal(err)
		}
		mods := v.View().Moderators
		if len(mods) != 2 || mods[0].Label != "mod" {
			t.Fatalf("moderators = %+v", mods)
		}
		v.Close()
	}
	if g.n != 1 {
		t.Fatalf("roster fetched %d times", g.n)
	}
}

func TestStaleFetchIsDropped(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0), report(2, "pending", 0))
	gate := make(chan struct{})
	d.svc.gates[1] = gate

	done := make(chan struct{})
	go func() {
		_ = d.v.Show(context.Background(), 1)
		close(done)
	}()
	<-d.svc.entered
	d.show(t, 2)
	close(gate)
	<-done
	if got := d.v.State().ReportID(); got != 2 {
		t.Fatalf("stale fetch overwrote the view: %d", got)
	}
}

func TestNoteDebounceCoalescesEdits(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.show(t, 1)
	for _, s := range []string{"a", "ab", "abc"} {
		if err := d.v.EditNote(s); err != nil {
			t.Fatal(err)
		}
	}
	if len(d.svc.Calls()) != 0 {
		t.Fatalf("posted before the delay")
	}
	d.clock.Elapse()
	calls := d.svc.Calls()
	if len(calls) != 1 || calls[0] != (call{"note", 1, "abc"}) {
		t.Fatalf("calls = %+v", calls)
	}
}

func switchAndEdit(t *testing.T, d *desk) error {
	t.Helper()
	if err := d.v.EditNote("first"); err != nil {
		t.Fatal(err)
	}
	d.show(t, 2)
	return d.v.EditNote("second")
}

func TestBlockPolicyWarnsOnSecondReport(t *testing.T) {
	d := newDesk(t, PolicyBlock, report(1, "pending", 0), report(2, "pending", 0))
	d.show(t, 1)
	if err := switchAndEdit(t, d); !errors.Is(err, ErrSaveBusy) {
		t.Fatalf("err = %v", err)
	}
	alerts := d.alerts.Drain()
	if len(alerts) != 1 || alerts[0].Level != "warning" || !strings.Contains(alerts[0].Message, "report 1") {
		t.Fatalf("alerts = %+v", alerts)
	}
	if d.v.State().Note != "second" {
		t.Fatalf("local text lost: %q", d.v.State().Note)
	}
	d.clock.Elapse()
	calls := d.svc.Calls()
	if len(calls) != 1 || calls[0] != (call{"note", 1, "first"}) {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestPerReportPolicySavesBoth(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0), report(2, "pending", 0))
	d.show(t, 1)
	if err := switchAndEdit(t, d); err != nil {
		t.Fatal(err)
	}
	d.clock.Elapse()
	got := map[int64]string{}
	for _, c := range d.svc.Calls() {
		got[c.id] = c.arg
	}
	if got[1] != "first" || got[2] != "second" || len(d.alerts.Drain()) != 0 {
		t.Fatalf("saves = %v", got)
	}
}

func TestQueuePolicySavesInOrder(t *testing.T) {
	d := newDesk(t, PolicyQueue, report(1, "pending", 0), report(2, "pending", 0))
	d.show(t, 1)
	if err := switchAndEdit(t, d); err != nil {
		t.Fatal(err)
	}
	d.clock.Elapse()
	if calls := d.svc.Calls(); len(calls) != 1 || calls[0].id != 1 {
		t.Fatalf("first round = %+v", calls)
	}
	d.clock.Elapse()
	calls := d.svc.Calls()
	if len(calls) != 2 || calls[1] != (call{"note", 2, "second"}) {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestFlushAndSwitchPolicySavesFirstImmediately(t *testing.T) {
	d := newDesk(t, PolicyFlushAndSwitch, report(1, "pending", 0), report(2, "pending", 0))
	d.show(t, 1)
	if err := switchAndEdit(t, d); err != nil {
		t.Fatal(err)
	}
	calls := d.svc.Calls()
	if len(calls) != 1 || calls[0] != (call{"note", 1, "first"}) {
		t.Fatalf("flush = %+v", calls)
	}
	d.clock.Elapse()
	if calls := d.svc.Calls(); len(calls) != 2 || calls[1] != (call{"note", 2, "second"}) {
		t.Fatalf("calls = %+v", calls)
	}
}

type blockingPoster struct {
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
	active  map[int64]int
	peak    int
	posts   []call
}

func newBlockingPoster() *blockingPoster {
	return &blockingPoster{gate: make(chan struct{}), entered: make(chan struct{}, 1), active: map[int64]int{}}
}

// post blocks the first save until gate is closed.
func (b *blockingPoster) post(_ context.Context, id int64, text string) error {
	b.mu.Lock()
	b.active[id]++
	b.peak = max(b.peak, b.active[id])
	first := len(b.posts) == 0
	b.posts = append(b.posts, call{"note", id, text})
	b.mu.Unlock()
	if first {
		b.entered <- struct{}{}
		<-b.gate
	}
	b.mu.Lock()
	b.active[id]--
	b.mu.Unlock()
	return nil
}

func (b *blockingPoster) snapshot() (int, []call) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak, append([]call(nil), b.posts...)
}

func TestFlushWaitsForInFlightSave(t *testing.T) {
	for _, trigger := range []string{"switch", "flush"} {
		t.Run(trigger, func(t *testing.T) {
			b := newBlockingPoster()
			clock := &fakeClock{}
			s := NewNoteSaver(b.post, &Alerts{}, WithPolicy(PolicyFlushAndSwitch), WithAfterFunc(clock.AfterFunc))

			_ = s.Edit(1, "a")
			done := make(chan struct{})
			go func() {
				clock.Elapse()
				close(done)
			}()
			<-b.entered
			_ = s.Edit(1, "b")
			clock.Elapse()

			if trigger == "switch" {
				_ = s.Edit(2, "x")
			} else {
				s.Flush()
			}
			if _, posts := b.snapshot(); len(posts) != 1 {
				t.Fatalf("second save started while the first was in flight: %+v", posts)
			}
			close(b.gate)
			<-done
			clock.Elapse()

			peak, posts := b.snapshot()
			if peak != 1 {
				t.Fatalf("report 1 had %d concurrent saves", peak)
			}
			if len(posts) < 2 || posts[0] != (call{"note", 1, "a"}) || posts[1] != (call{"note", 1, "b"}) {
				t.Fatalf("posts = %+v", posts)
			}
			if trigger == "switch" && (len(posts) != 3 || posts[2] != (call{"note", 2, "x"})) {
				t.Fatalf("switched note not saved: %+v", posts)
			}
		})
	}
}

func TestPushKeepsNoteWhileEditing(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.show(t, 1)
	_ = d.v.EditNote("draft")
	pushed := report(1, "pending", 0)
	pushed.ModeratorNote = "server"
	d.svc.push(pushed)
	if d.v.State().Note != "draft" {
		t.Fatalf("note overwritten while editing")
	}
	d.clock.Elapse()
	d.svc.push(pushed)
	if d.v.State().Note != "server" {
		t.Fatalf("note not refreshed after save")
	}
}

func TestCloseFlushesPendingNote(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(1, "pending", 0))
	d.show(t, 1)
	_ = d.v.EditNote("bye")
	d.v.Close()
	if calls := d.svc.Calls(); len(calls) != 1 || calls[0].arg != "bye" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, _ := ParsePolicy(""); p != PolicyPerReport {
		t.Fatalf("default = %q", p)
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRender(t *testing.T) {
	d := newDesk(t, PolicyPerReport, report(12345, "pending", 0))
	var buf bytes.Buffer
	_ = Render(d.v.View()).Render(context.Background(), &buf)
	if !strings.Contains(buf.String(), "All done!") {
		t.Fatalf("empty markup = %s", buf.String())
	}

	d.v.SetReports([]int64{12345})
	d.show(t, 12345)
	buf.Reset()
	_ = Render(d.v.View()).Render(context.Background(), &buf)
	html := buf.String()
	for _, want := range []string{`data-action="claim"`, `data-action="ignore"`, "R345", "Stalling", `<textarea name="note">`} {
		if !strings.Contains(html, want) {
			t.Fatalf("markup missing %q: %s", want, html)
		}
	}
	if strings.Contains(html, `data-action="good"`) {
		t.Fatalf("resolve offered on an unclaimed report")
	}
}

func TestRenderPanel(t *testing.T) {
	v := View{
		ReportID:      12,
		InList:        true,
		ReportOptions: []SelectOption{{ID: 11, Label: "R011"}, {ID: 12, Label: "R012", Selected: true}},
		Moderators:    []SelectOption{{ID: 7, Label: "mod"}},
		Actions:       Actions{Unclaim: true, Good: true},
		ReportedUser:  "<script>",
		URL:           "javascript:alert(1)",
		ReportedGame:  42,
		Review:        9,
		Conversation:  []string{"hi"},
		Labels:        Labels{ModeratorHint: "pick", Unclaim: "Unclaim", Good: "Good"},
	}
	var buf bytes.Buffer
	if err := Render(v).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		`<option value="12" selected>R012</option>`,
		`<option value="">pick</option> <option value="7">mod</option>`,
		`<button class="danger xs" data-action="unclaim">Unclaim</button>`,
		`<button class="success" data-action="good">Good</button>`,
		`&lt;script&gt;`,
		`<a href="/game/42">#42</a> <img src="/games/42/board.png" alt="">`,
		`<a href="/review/9">##9</a>`,
		`<div class="chatline">hi</div>`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("markup missing %q: %s", want, html)
		}
	}
	if strings.Contains(html, `href="javascript:`) {
		t.Fatalf("unsafe url rendered: %s", html)
	}
}

func TestFromNow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := map[time.Duration]string{
		10 * time.Second:         "a few seconds ago",
		90 * time.Second:         "a minute ago",
		5 * time.Minute:          "5 minutes ago",
		time.Hour:                "an hour ago",
		3 * 24 * time.Hour:       "3 days ago",
		400 * 24 * time.Hour:     "a year ago",
		3 * 365 * 24 * time.Hour: "3 years ago",
	}
	for d, want := range cases {
		if got := fromNow(now.Add(-d), now); got != want {
			t.Fatalf("fromNow(-%v) = %q want %q", d, got, want)
		}
	}
	if got := fromNow(now.Add(10*time.Minute), now); got != "10 minutes from now" {
		t.Fatalf("future = %q", got)
	}
}
