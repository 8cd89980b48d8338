package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

// Loopback is an in-process Transport. Commands are recorded instead of
// written to a socket and frames are injected with Emit.
type Loopback struct {
	mu        sync.Mutex
	nextID    int
	handlers  []handlerEntry
	connected map[int]func()
	sent      []Command
	sendErr   error
}

func NewLoopback() *Loopback {
	return &Loopback{connected: make(map[int]func())}
}

func (l *Loopback) Send(_ context.Context, command string, data any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, Command{Command: command, Data: data})
	return nil
}

func (l *Loopback) On(event string, h Handler) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.handlers = append(l.handlers, handlerEntry{id: l.nextID, event: event, h: h})
	return l.nextID
}

func (l *Loopback) Off(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.handlers {
		if e.id == id {
			l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
			return
		}
	}
	delete(l.connected, id)
}

func (l *Loopback) OnConnected(cb func()) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.connected[l.nextID] = cb
	return l.nextID
}

// Emit delivers a frame to every handler registered for event.
func (l *Loopback) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	l.mu.Lock()
	var hs []Handler
	for _, e := range l.handlers {
		if e.event == event {
			hs = append(hs, e.h)
		}
	}
	l.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
	return nil
}

// Reconnect fires the OnConnected callbacks.
func (l *Loopback) Reconnect() {
	l.mu.Lock()
	cbs := make([]func(), 0, len(l.connected))
	for _, cb := range l.connected {
		cbs = append(cbs, cb)
	}
	l.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Sent returns a copy of the recorded commands.
func (l *Loopback) Sent() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Command(nil), l.sent...)
}

// Handlers reports how many frame handlers are registered for event.
func (l *Loopback) Handlers(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.handlers {
		if e.event == event {
			n++
		}
	}
	return n
}

func (l *Loopback) FailSends(err error) {
	l.mu.Lock()
	l.sendErr = err
	l.mu.Unlock()
}
