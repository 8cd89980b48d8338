package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/park285/goban-desk/internal/realtime"
	"github.com/park285/goban-desk/internal/requests"
	"github.com/park285/goban-desk/pkg/modapi"
)

type recorded struct {
	path      string
	requestID string
	body      modapi.ActionRequest
}

func newBackend(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var got []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/moderation/incident/"):
			if r.URL.Path == "/moderation/incident/404" {
				http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"id":12345,"report_type":"stalling","state":"pending","reporter_note":"slow"}`))
		case r.Method == http.MethodPost:
			var body modapi.ActionRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			got = append(got, recorded{path: r.URL.Path, requestID: r.Header.Get("X-Request-Id"), body: body})
			mu.Unlock()
			if body.Action == ActionReopen {
				http.Error(w, "nope", http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), got...)
	}
}

func TestGetReport(t *testing.T) {
	srv, _ := newBackend(t)
	m := NewManager(requests.NewClient(srv.URL, requests.WithRetry(0)), nil, nil, 1)
	r, err := m.GetReport(context.Background(), 12345)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if r.ID != 12345 || r.State != StatePending || r.ReporterNote != "slow" {
		t.Fatalf("report = %+v", r)
	}
	if _, err := m.GetReport(context.Background(), 404); err == nil {
		t.Fatalf("expected error for missing report")
	}
}

func TestActionsPostAndJournal(t *testing.T) {
	srv, posts := newBackend(t)
	j := NewMemoryJournal()
	m := NewManager(requests.NewClient(srv.URL), nil, j, 7)
	ctx := context.Background()

	if err := m.Claim(ctx, 5); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := m.Note(ctx, 5, "watch this one"); err != nil {
		t.Fatalf("Note: %v", err)
	}
	if err := m.Assign(ctx, 5, 42); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := m.Reopen(ctx, 5); err == nil {
		t.Fatalf("expected reopen failure")
	}

	got := posts()
	if len(got) != 4 {
		t.Fatalf("posts = %d", len(got))
	}
	for _, p := range got {
		if p.path != "/moderation/incident/5" || p.body.ID != 5 {
			t.Fatalf("unexpected post %+v", p)
		}
	}
	if got[1].body.Note == nil || *got[1].body.Note != "watch this one" || got[2].body.ModeratorID != 42 {
		t.Fatalf("bodies = %+v", got)
	}

	entries, _ := j.ForReport(ctx, 5, 10)
	if len(entries) != 3 {
		t.Fatalf("journal has %d entries, failed actions must not be journaled", len(entries))
	}
	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.RequestID] = true
		if e.ModeratorID != 7 {
			t.Fatalf("moderator = %d", e.ModeratorID)
		}
	}
	if !ids[got[0].requestID] {
		t.Fatalf("journal request ids do not match headers")
	}
}

func TestIncidentReportListeners(t *testing.T) {
	lb := realtime.NewLoopback()
	m := NewManager(nil, lb, nil, 1)
	var seen []int64
	a := m.On(func(r *Report) { seen = append(seen, r.ID) })
	b := m.On(func(r *Report) { seen = append(seen, r.ID*10) })
	if lb.Handlers(EventIncidentReport) != 1 {
		t.Fatalf("expected one realtime handler")
	}
	_ = lb.Emit(EventIncidentReport, modapi.Report{ID: 3, State: StateClaimed})
	if len(seen) != 2 {
		t.Fatalf("seen = %v", seen)
	}
	m.Off(a)
	m.Off(b)
	if lb.Handlers(EventIncidentReport) != 0 {
		t.Fatalf("realtime handler leaked")
	}
}

func TestMemoryJournalRejectsDuplicates(t *testing.T) {
	j := NewMemoryJournal()
	e := Entry{RequestID: "r1", ReportID: 1}
	if err := j.Record(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(context.Background(), e); err != ErrDuplicateEntry {
		t.Fatalf("err = %v", err)
	}
}

func TestCategoryFor(t *testing.T) {
	c, ok := CategoryFor("escaping")
	if !ok || c.Title != "Stopped Playing" {
		t.Fatalf("category = %+v", c)
	}
	if _, ok := CategoryFor("nonsense"); ok {
		t.Fatalf("unknown category matched")
	}
}
