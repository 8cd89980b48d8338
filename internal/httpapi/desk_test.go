package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/goban-desk/internal/realtime"
	"github.com/park285/goban-desk/internal/reports"
	"github.com/park285/goban-desk/internal/reportview"
	"github.com/park285/goban-desk/internal/requests"
	"github.com/park285/goban-desk/pkg/modapi"
)

type backend struct {
	mu      sync.Mutex
	actions []modapi.ActionRequest
}

func (b *backend) posted() []modapi.ActionRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]modapi.ActionRequest(nil), b.actions...)
}

// newBackend serves every report as pending and unclaimed. Actions on
// report 666 fail.
func newBackend(t *testing.T) (*httptest.Server, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id int64
		if _, err := fmt.Sscanf(r.URL.Path, "/moderation/incident/%d", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodGet {
			_, _ = fmt.Fprintf(w, `{"id":%d,"report_type":"stalling","state":"pending","reporter_note":"slow play"}`, id)
			return
		}
		var body modapi.ActionRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.actions = append(b.actions, body)
		b.mu.Unlock()
		if id == 666 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, b
}

func deskRouter(t *testing.T) (http.Handler, *backend, reports.Journal) {
	t.Helper()
	srv, b := newBackend(t)
	client := requests.NewClient(srv.URL, requests.WithRetry(0))
	journal := reports.NewMemoryJournal()
	desks := NewDesks(func(mod int64) reportview.Service {
		return reports.NewManager(client, nil, journal, mod)
	}, journal, WithNotePolicy(reportview.PolicyPerReport, 10*time.Millisecond))
	t.Cleanup(desks.Close)
	return NewRouter(Deps{Desks: desks}), b, journal
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestDeskShowAndWalk(t *testing.T) {
	h, _, _ := deskRouter(t)
	if rec := do(t, h, http.MethodPut, "/desk/7/reports", `[101,102]`); rec.Code != http.StatusNoContent {
		t.Fatalf("put reports = %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/desk/7/report/101", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "slow play") {
		t.Fatalf("show = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/desk/7/report/101/next", "")
	if !strings.Contains(rec.Body.String(), `<option value="102" selected>`) {
		t.Fatalf("next did not select 102: %s", rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/desk/7/report/102/next", "")
	if !strings.Contains(rec.Body.String(), "All done!") {
		t.Fatalf("end of list not empty: %s", rec.Body.String())
	}
}

func TestDeskClaimIsJournaled(t *testing.T) {
	h, b, _ := deskRouter(t)
	rec := do(t, h, http.MethodPost, "/desk/7/report/101/claim", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `data-action="unclaim"`) {
		t.Fatalf("claim = %d %s", rec.Code, rec.Body.String())
	}
	if got := b.posted(); len(got) != 1 || got[0].Action != reports.ActionClaim || got[0].ID != 101 {
		t.Fatalf("posted = %+v", got)
	}

	rec = do(t, h, http.MethodGet, "/desk/7/report/101/journal", "")
	var entries []reports.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("journal body: %v", err)
	}
	if len(entries) != 1 || entries[0].ModeratorID != 7 || entries[0].Action != reports.ActionClaim {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestDeskRejectsUnavailableAction(t *testing.T) {
	h, b, _ := deskRouter(t)
	rec := do(t, h, http.MethodPost, "/desk/7/report/101/unclaim", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(b.posted()) != 0 {
		t.Fatalf("request sent for a disallowed action")
	}
	if rec := do(t, h, http.MethodPost, "/desk/7/report/101/explode", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action = %d", rec.Code)
	}
}

func TestDeskActionFailureAlerts(t *testing.T) {
	h, _, _ := deskRouter(t)
	if rec := do(t, h, http.MethodPost, "/desk/7/report/666/claim", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/desk/7/alerts", "")
	var alerts []reportview.Alert
	_ = json.Unmarshal(rec.Body.Bytes(), &alerts)
	if len(alerts) != 1 || alerts[0].Level != "error" {
		t.Fatalf("alerts = %+v", alerts)
	}
	rec = do(t, h, http.MethodGet, "/desk/7/alerts", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("alerts not drained: %s", rec.Body.String())
	}
}

func TestDeskNoteIsSavedAfterDelay(t *testing.T) {
	h, b, _ := deskRouter(t)
	if rec := do(t, h, http.MethodPost, "/desk/7/report/101/note", `{"note":"warned"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("note = %d %s", rec.Code, rec.Body.String())
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := b.posted()
		if len(got) == 1 {
			if got[0].Action != reports.ActionNote || got[0].Note == nil || *got[0].Note != "warned" {
				t.Fatalf("posted = %+v", got[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("note never saved")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeskAssign(t *testing.T) {
	h, b, _ := deskRouter(t)
	if rec := do(t, h, http.MethodPost, "/desk/7/report/101/assign", `{"moderator_id":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero moderator = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/desk/7/report/101/assign", `{"moderator_id":9}`); rec.Code != http.StatusOK {
		t.Fatalf("assign = %d", rec.Code)
	}
	if got := b.posted(); len(got) != 1 || got[0].ModeratorID != 9 {
		t.Fatalf("posted = %+v", got)
	}
}

func TestDeskInvalidModerator(t *testing.T) {
	h, _, _ := deskRouter(t)
	if rec := do(t, h, http.MethodGet, "/desk/x/report", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func ownedDeskRouter(t *testing.T, owner int64) (http.Handler, *backend, *realtime.Loopback) {
	t.Helper()
	srv, b := newBackend(t)
	client := requests.NewClient(srv.URL, requests.WithRetry(0))
	socket := realtime.NewLoopback()
	journal := reports.NewMemoryJournal()
	desks := NewDesks(func(mod int64) reportview.Service {
		return reports.NewManager(client, socket, journal, mod)
	}, journal, WithDeskOwner(owner))
	t.Cleanup(desks.Close)
	return NewRouter(Deps{Desks: desks}), b, socket
}

func TestDeskClaimSurvivesServerEcho(t *testing.T) {
	h, b, socket := ownedDeskRouter(t, 7)
	rec := do(t, h, http.MethodPost, "/desk/7/report/101/claim", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("claim = %d %s", rec.Code, rec.Body.String())
	}
	if got := b.posted(); len(got) != 1 || got[0].ID != 101 {
		t.Fatalf("posted = %+v", got)
	}

	echo := modapi.Report{
		ID:           101,
		ReportType:   "stalling",
		State:        reports.StateClaimed,
		Moderator:    &modapi.PlayerRef{ID: 7, Username: "mod7"},
		ReporterNote: "slow play",
	}
	if err := socket.Emit(reports.EventIncidentReport, echo); err != nil {
		t.Fatalf("emit: %v", err)
	}

	body := do(t, h, http.MethodGet, "/desk/7/report", "").Body.String()
	for _, want := range []string{`data-action="unclaim"`, `data-action="good"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s after echo: %s", want, body)
		}
	}
	if strings.Contains(body, `data-action="claim"`) {
		t.Fatalf("claim offered again after echo: %s", body)
	}
}

func TestDeskRejectsOtherModerators(t *testing.T) {
	h, b, _ := ownedDeskRouter(t, 7)
	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/desk/8/report"},
		{http.MethodPost, "/desk/8/report/101/claim"},
		{http.MethodGet, "/desk/8/report/101/journal"},
	} {
		if rec := do(t, h, c.method, c.path, ""); rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s = %d", c.method, c.path, rec.Code)
		}
	}
	if len(b.posted()) != 0 {
		t.Fatalf("request sent for a foreign desk")
	}
	if rec := do(t, h, http.MethodGet, "/desk/7/report", ""); rec.Code != http.StatusOK {
		t.Fatalf("owner desk = %d", rec.Code)
	}
}
