package reports

import "github.com/park285/goban-desk/pkg/modapi"

// Report is the wire record; the desk never mutates one it received.
type Report = modapi.Report

const (
	StatePending  = "pending"
	StateClaimed  = "claimed"
	StateResolved = "resolved"
)

// Action names as the moderation endpoint expects them.
const (
	ActionClaim   = "claim"
	ActionUnclaim = "unclaim"
	ActionGood    = "good_report"
	ActionBad     = "bad_report"
	ActionIgnore  = "ignore"
	ActionReopen  = "reopen"
	ActionNote    = "note"
	ActionAssign  = "assign"
)

// ModeratorID returns the claimant's id, 0 when unclaimed.
func ModeratorID(r *Report) int64 {
	if r == nil || r.Moderator == nil {
		return 0
	}
	return r.Moderator.ID
}
