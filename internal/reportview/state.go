package reportview

import "github.com/park285/goban-desk/internal/reports"

// overlay holds optimistic local changes on top of the confirmed record.
// The next server push for the report clears it.
type overlay struct {
	state       *string
	moderatorID *int64
}

// State is the viewer's reducer state.
type State struct {
	Confirmed *reports.Report
	Note      string
	Error     string

	local overlay
}

func (s State) ReportID() int64 {
	if s.Confirmed == nil {
		return 0
	}
	return s.Confirmed.ID
}

// EffectiveState is the resolution state with local changes applied.
func (s State) EffectiveState() string {
	if s.local.state != nil {
		return *s.local.state
	}
	if s.Confirmed == nil {
		return ""
	}
	return s.Confirmed.State
}

// EffectiveModeratorID is the claimant with local changes applied.
func (s State) EffectiveModeratorID() int64 {
	if s.local.moderatorID != nil {
		return *s.local.moderatorID
	}
	return reports.ModeratorID(s.Confirmed)
}

type event interface{ isEvent() }

type (
	evFetched     struct{ report *reports.Report }
	evFetchFailed struct{ err error }
	evCleared     struct{}
	evPushed      struct {
		report  *reports.Report
		editing bool
	}
	evClaimed    struct{ me int64 }
	evUnclaimed  struct{}
	evAssigned   struct{ moderatorID int64 }
	evNoteEdited struct{ text string }
)

func (evFetched) isEvent()     {}
func (evFetchFailed) isEvent() {}
func (evCleared) isEvent()     {}
func (evPushed) isEvent()      {}
func (evClaimed) isEvent()     {}
func (evUnclaimed) isEvent()   {}
func (evAssigned) isEvent()    {}
func (evNoteEdited) isEvent()  {}

func ptr[T any](v T) *T { return &v }

// reduce never mutates the confirmed record; every change lands in the overlay.
func reduce(s State, ev event) State {
	switch e := ev.(type) {
	case evFetched:
		return State{Confirmed: e.report, Note: e.report.ModeratorNote}
	case evFetchFailed:
		// The previous report is dropped so no action can reach it from behind the error panel.
		return State{Error: e.err.Error()}
	case evCleared:
		return State{}
	case evPushed:
		if s.Confirmed == nil || e.report.ID != s.Confirmed.ID {
			return s
		}
		s.Confirmed = e.report
		s.local = overlay{}
		if !e.editing {
			s.Note = e.report.ModeratorNote
		}
		return s
	case evClaimed:
		s.local.moderatorID = ptr(e.me)
		s.local.state = ptr(reports.StateClaimed)
		return s
	case evUnclaimed:
		if reports.ModeratorID(s.Confirmed) != 0 {
			s.local.state = ptr(reports.StateClaimed)
		} else {
			s.local.state = ptr(reports.StatePending)
		}
		return s
	case evAssigned:
		s.local.moderatorID = ptr(e.moderatorID)
		return s
	case evNoteEdited:
		s.Note = e.text
		return s
	}
	return s
}
