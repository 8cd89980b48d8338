package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestSocketRoundTrip(t *testing.T) {
	received := make(chan Command, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing handshake header")
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		var cmd Command
		if err := wsjson.Read(ctx, c, &cmd); err != nil {
			return
		}
		received <- cmd
		_ = wsjson.Write(ctx, c, Frame{Event: "game/7/gamedata", Data: json.RawMessage(`{"move_number":3}`)})
		// hold the connection until the client closes it
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	s := NewSocket("ws"+strings.TrimPrefix(srv.URL, "http"), 0, time.Millisecond)
	s.SetHeaderProvider(func() map[string]string { return map[string]string{"Authorization": "Bearer tok"} })

	connected := make(chan struct{}, 1)
	s.OnConnected(func() { connected <- struct{}{} })
	got := make(chan json.RawMessage, 1)
	s.On("game/7/gamedata", func(d json.RawMessage) { got <- d })
	s.On("other", func(json.RawMessage) { t.Errorf("unexpected dispatch") })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-connected:
	case <-ctx.Done():
		t.Fatalf("connected callback not fired")
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %s", s.State())
	}
	if err := s.Send(ctx, "game/connect", map[string]int{"game_id": 7}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case cmd := <-received:
		if cmd.Command != "game/connect" {
			t.Fatalf("command = %q", cmd.Command)
		}
	case <-ctx.Done():
		t.Fatalf("server did not receive command")
	}
	select {
	case d := <-got:
		if !strings.Contains(string(d), "move_number") {
			t.Fatalf("data = %s", d)
		}
	case <-ctx.Done():
		t.Fatalf("frame not dispatched")
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	s := NewSocket("ws://127.0.0.1:1", 0, time.Millisecond)
	if err := s.Send(context.Background(), "x", nil); err != ErrNotConnected {
		t.Fatalf("err = %v", err)
	}
}

func TestLoopbackOffRemovesHandler(t *testing.T) {
	l := NewLoopback()
	calls := 0
	id := l.On("incident-report", func(json.RawMessage) { calls++ })
	_ = l.Emit("incident-report", map[string]int{"id": 1})
	l.Off(id)
	_ = l.Emit("incident-report", map[string]int{"id": 1})
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
	if l.Handlers("incident-report") != 0 {
		t.Fatalf("handler leaked")
	}
}
