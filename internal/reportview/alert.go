package reportview

import (
	"sync"

	"github.com/park285/goban-desk/internal/obslog"
	"go.uber.org/zap"
)

// Alerter surfaces failures and warnings to the moderator.
type Alerter interface {
	Error(err error)
	Warn(msg string)
}

// LogAlerter writes alerts to the process log only.
type LogAlerter struct{}

func (LogAlerter) Error(err error) { obslog.L().Error("report_desk_alert", zap.Error(err)) }

func (LogAlerter) Warn(msg string) {
	obslog.L().Warn("report_desk_warning", zap.String("message", msg))
}

// Alerts keeps alerts until the desk drains them, and logs them too.
type Alerts struct {
	mu   sync.Mutex
	msgs []Alert
}

type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (a *Alerts) Error(err error) {
	LogAlerter{}.Error(err)
	a.push(Alert{Level: "error", Message: err.Error()})
}

func (a *Alerts) Warn(msg string) {
	LogAlerter{}.Warn(msg)
	a.push(Alert{Level: "warning", Message: msg})
}

func (a *Alerts) push(al Alert) {
	a.mu.Lock()
	a.msgs = append(a.msgs, al)
	a.mu.Unlock()
}

// Drain returns and clears pending alerts.
func (a *Alerts) Drain() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.msgs
	a.msgs = nil
	return out
}
