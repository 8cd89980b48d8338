package linesummary

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/goban-desk/internal/gamesession"
	"github.com/park285/goban-desk/internal/obslog"
	"go.uber.org/zap"
)

// Cell is one column of the summary row: a player name or a clock.
type Cell struct {
	Player  string
	Clock   string
	IsClock bool
	ToMove  bool
}

func (c Cell) kind() string {
	if c.IsClock {
		return "clock"
	}
	return "player"
}

func (c Cell) text() string {
	if c.IsClock {
		return c.Clock
	}
	return c.Player
}

// View is what Render draws.
type View struct {
	Href       string
	Class      string
	MoveNumber string
	GameName   string
	Cells      []Cell
	Size       string
}

// View projects the current state for the configured mode. An unknown
// viewer in opponent-only mode is logged and rendered with black as the
// opponent.
func (w *Widget) View() View {
	w.mu.Lock()
	p := w.props
	st := w.state
	now := w.now()
	w.mu.Unlock()

	classes := []string{"GobanLineSummary"}
	if st.CurrentUsersMove {
		classes = append(classes, "current-users-move")
	}
	if st.InStoneRemovalPhase {
		classes = append(classes, "in-stone-removal-phase")
	}
	v := View{
		Href:     fmt.Sprintf("/game/%d", p.GameID),
		Class:    strings.Join(classes, " "),
		GameName: st.GameName,
		Size:     w.cat.Text("summary.size", map[string]any{"Width": p.Width, "Height": p.Height}),
	}
	if st.synced {
		v.MoveNumber = strconv.Itoa(st.MoveNumber)
	}

	switch p.Mode {
	case ModeOpponentOnly:
		if p.Player == nil {
			obslog.L().Error("line_summary_player_missing",
				zap.String("mode", string(p.Mode)), zap.Int64("game_id", p.GameID))
		}
		mine := ResolveColor(p.Player, p.Black, p.White, p.RengoTeams)
		if mine == ColorUndetermined {
			obslog.L().Error("line_summary_undetermined_player",
				zap.String("mode", string(p.Mode)), zap.Int64("game_id", p.GameID), zap.String("game_name", st.GameName))
		}
		theirs := mine.Opponent()
		opponent := p.Black
		if mine == ColorBlack {
			opponent = p.White
		}
		v.Cells = []Cell{
			{Player: displayName(opponent, true), ToMove: toMoveCls(st, theirs) != ""},
			clockCell(st, mine, now),
			clockCell(st, theirs, now),
		}
	case ModeBothPlayers:
		v.Cells = []Cell{
			{Player: displayName(p.Black, true), ToMove: st.BlackToMoveCls != ""},
			clockCell(st, ColorBlack, now),
			{Player: displayName(p.White, false), ToMove: st.WhiteToMoveCls != ""},
			clockCell(st, ColorWhite, now),
		}
	}
	return v
}

func toMoveCls(st ViewState, c Color) string {
	switch c {
	case ColorBlack:
		return st.BlackToMoveCls
	case ColorWhite:
		return st.WhiteToMoveCls
	}
	return ""
}

func clockCell(st ViewState, c Color, now time.Time) Cell {
	cell := Cell{IsClock: true}
	if c == ColorUndetermined || st.clock == nil {
		return cell
	}
	side, stone := st.clock.Black, gamesession.Black
	if c == ColorWhite {
		side, stone = st.clock.White, gamesession.White
	}
	running := st.playing && !st.clock.Paused && st.toMove == stone
	cell.ToMove = running
	cell.Clock = formatClock(side, running, now.Sub(st.clock.ReceivedAt))
	return cell
}

// formatClock shows remaining main time, then byo-yomi periods once main
// time is spent.
func formatClock(side gamesession.SideClock, running bool, elapsed time.Duration) string {
	main := side.ThinkingTime
	if running && elapsed > 0 {
		main -= elapsed
	}
	if main > 0 || side.Periods == 0 {
		return formatDuration(max(main, 0))
	}
	period := side.PeriodTime
	if running && side.ThinkingTime <= 0 && elapsed > 0 {
		period -= elapsed
	}
	return fmt.Sprintf("%s (%d)", formatDuration(max(period, 0)), side.Periods)
}

func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
