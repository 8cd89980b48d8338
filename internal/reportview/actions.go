package reportview

import (
	"context"

	"github.com/park285/goban-desk/internal/obslog"
	"github.com/park285/goban-desk/internal/reports"
	"go.uber.org/zap"
)

// Actions lists what the moderator may do with the displayed report.
type Actions struct {
	Claim    bool
	Unclaim  bool
	Good     bool
	Bad      bool
	Reopen   bool
	Ignore   bool
	Assign   bool
	EditNote bool
}

func availableActions(s State, me User) Actions {
	if s.Confirmed == nil {
		return Actions{}
	}
	mod := s.EffectiveModeratorID()
	mine := mod != 0 && mod == me.ID
	resolved := s.EffectiveState() == reports.StateResolved
	return Actions{
		Claim:    mod == 0,
		Unclaim:  mine,
		Good:     mine && !resolved,
		Bad:      mine && !resolved,
		Reopen:   resolved,
		Ignore:   !mine,
		Assign:   me.IsModerator,
		EditNote: me.IsModerator,
	}
}

func (v *Viewer) Actions() Actions {
	v.mu.Lock()
	defer v.mu.Unlock()
	return availableActions(v.state, v.me)
}

// begin checks availability and applies the optimistic change in one step.
func (v *Viewer) begin(allowed func(Actions) bool, ev event) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.state.ReportID()
	if id == 0 {
		return 0, ErrNoReport
	}
	if !allowed(availableActions(v.state, v.me)) {
		return 0, ErrNotAllowed
	}
	if ev != nil {
		v.state = reduce(v.state, ev)
	}
	return id, nil
}

// finish routes a request failure to the alert path. Local changes stay.
func (v *Viewer) finish(action string, id int64, err error) error {
	if err != nil {
		v.alert.Error(err)
		return err
	}
	obslog.L().Info("report_"+action, zap.Int64("report_id", id), zap.Int64("moderator_id", v.me.ID))
	return nil
}

func (v *Viewer) Claim(ctx context.Context) error {
	id, err := v.begin(func(a Actions) bool { return a.Claim }, evClaimed{me: v.me.ID})
	if err != nil {
		return err
	}
	return v.finish("claim", id, v.svc.Claim(ctx, id))
}

func (v *Viewer) Unclaim(ctx context.Context) error {
	id, err := v.begin(func(a Actions) bool { return a.Unclaim }, evUnclaimed{})
	if err != nil {
		return err
	}
	return v.finish("unclaim", id, v.svc.Unclaim(ctx, id))
}

func (v *Viewer) Assign(ctx context.Context, moderatorID int64) error {
	id, err := v.begin(func(a Actions) bool { return a.Assign }, evAssigned{moderatorID: moderatorID})
	if err != nil {
		return err
	}
	return v.finish("assign", id, v.svc.Assign(ctx, id, moderatorID))
}

func (v *Viewer) Reopen(ctx context.Context) error {
	id, err := v.begin(func(a Actions) bool { return a.Reopen }, nil)
	if err != nil {
		return err
	}
	return v.finish("reopen", id, v.svc.Reopen(ctx, id))
}

// GoodReport resolves the report and moves on whether or not the request
// succeeded.
func (v *Viewer) GoodReport(ctx context.Context) error {
	id, err := v.begin(func(a Actions) bool { return a.Good }, nil)
	if err != nil {
		return err
	}
	err = v.finish("good_report", id, v.svc.GoodReport(ctx, id))
	v.advance(ctx, id)
	return err
}

func (v *Viewer) BadReport(ctx context.Context) error {
	id, err := v.begin(func(a Actions) bool { return a.Bad }, nil)
	if err != nil {
		return err
	}
	err = v.finish("bad_report", id, v.svc.BadReport(ctx, id))
	v.advance(ctx, id)
	return err
}

func (v *Viewer) Ignore(ctx context.Context) error {
	id, err := v.begin(func(a Actions) bool { return a.Ignore }, nil)
	if err != nil {
		return err
	}
	err = v.finish("ignore", id, v.svc.Ignore(ctx, id))
	v.advance(ctx, id)
	return err
}

// EditNote keeps text locally and hands it to the note saver.
func (v *Viewer) EditNote(text string) error {
	id, err := v.begin(func(a Actions) bool { return a.EditNote }, evNoteEdited{text: text})
	if err != nil {
		return err
	}
	return v.notes.Edit(id, text)
}

// Next shows the report after the displayed one, or clears the view.
func (v *Viewer) Next(ctx context.Context) error {
	v.mu.Lock()
	cur := v.state.ReportID()
	_, next := Neighbors(v.reports, cur)
	v.mu.Unlock()
	if cur == 0 {
		return ErrNoReport
	}
	return v.moveTo(ctx, next)
}

// Prev shows the report before the displayed one; at the start it does nothing.
// Both return ErrNoReport while nothing is displayed.
func (v *Viewer) Prev(ctx context.Context) error {
	v.mu.Lock()
	cur := v.state.ReportID()
	prev, _ := Neighbors(v.reports, cur)
	v.mu.Unlock()
	if cur == 0 {
		return ErrNoReport
	}
	if prev == 0 {
		return nil
	}
	return v.moveTo(ctx, prev)
}

func (v *Viewer) advance(ctx context.Context, from int64) {
	v.mu.Lock()
	_, next := Neighbors(v.reports, from)
	v.mu.Unlock()
	_ = v.moveTo(ctx, next)
}

func (v *Viewer) moveTo(ctx context.Context, id int64) error {
	if v.onChange != nil {
		v.onChange(id)
	}
	return v.Show(ctx, id)
}
