package gamesession

import (
	"encoding/json"
	"fmt"
	"time"
)

type wirePlayer struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type wireScore struct {
	Prisoners int     `json:"prisoners"`
	Komi      float64 `json:"komi"`
	Territory int     `json:"territory"`
	Stones    int     `json:"stones"`
}

type wireSideClock struct {
	ThinkingTime float64 `json:"thinking_time"`
	Periods      int     `json:"periods"`
	PeriodTime   float64 `json:"period_time"`
}

type wireClock struct {
	CurrentPlayer int64         `json:"current_player"`
	BlackTime     wireSideClock `json:"black_time"`
	WhiteTime     wireSideClock `json:"white_time"`
	Paused        bool          `json:"pause_control,omitempty"`
}

type gameData struct {
	GameID        int64   `json:"game_id"`
	GameName      string  `json:"game_name"`
	Phase         string  `json:"phase"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Komi          float64 `json:"komi"`
	Handicap      int     `json:"handicap"`
	InitialPlayer string  `json:"initial_player"`
	Moves         [][]int `json:"moves"`
	Players       struct {
		Black wirePlayer `json:"black"`
		White wirePlayer `json:"white"`
	} `json:"players"`
	Clock *wireClock `json:"clock,omitempty"`
	Score *struct {
		Black wireScore `json:"black"`
		White wireScore `json:"white"`
	} `json:"score,omitempty"`
}

type moveFrame struct {
	GameID     int64 `json:"game_id"`
	MoveNumber int   `json:"move_number"`
	Move       []int `json:"move"`
}

type phaseFrame struct {
	Phase string `json:"phase"`
}

type removedStonesFrame struct {
	Removed bool     `json:"removed"`
	Stones  [][2]int `json:"stones"`
}

// applyGameData replaces the snapshot with a full game state.
func applyGameData(e *Engine, raw json.RawMessage, now time.Time) error {
	var gd gameData
	if err := json.Unmarshal(raw, &gd); err != nil {
		return fmt.Errorf("decode gamedata: %w", err)
	}
	if gd.Width <= 0 || gd.Height <= 0 {
		return fmt.Errorf("gamedata: invalid board size %dx%d", gd.Width, gd.Height)
	}
	next := Engine{
		GameID:   e.GameID,
		GameName: gd.GameName,
		Phase:    gd.Phase,
		Width:    gd.Width,
		Height:   gd.Height,
		Komi:     gd.Komi,
		Handicap: gd.Handicap,
		Board:    newBoard(gd.Width, gd.Height),
		Loaded:   true,
	}
	if next.Phase == "" {
		next.Phase = PhasePlay
	}
	next.Players[Black] = Player{ID: gd.Players.Black.ID, Username: gd.Players.Black.Username}
	next.Players[White] = Player{ID: gd.Players.White.ID, Username: gd.Players.White.Username}
	next.toMove = firstToMove(gd.InitialPlayer, gd.Handicap)
	for _, mv := range gd.Moves {
		if len(mv) < 2 {
			continue
		}
		playMove(&next, mv[0], mv[1])
	}
	if gd.Clock != nil {
		next.Clock = decodeClock(*gd.Clock, now)
	}
	if gd.Score != nil {
		next.FinalScore = &Score{
			Black: PlayerScore(gd.Score.Black),
			White: PlayerScore(gd.Score.White),
		}
	}
	*e = next
	return nil
}

func applyMove(e *Engine, raw json.RawMessage) error {
	var mf moveFrame
	if err := json.Unmarshal(raw, &mf); err != nil {
		return fmt.Errorf("decode move: %w", err)
	}
	if len(mf.Move) < 2 {
		return fmt.Errorf("move frame without coordinates")
	}
	if !e.Loaded {
		return fmt.Errorf("move before gamedata")
	}
	playMove(e, mf.Move[0], mf.Move[1])
	return nil
}

func applyPhase(e *Engine, raw json.RawMessage) error {
	var pf phaseFrame
	if err := json.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("decode phase: %w", err)
	}
	e.Phase = pf.Phase
	return nil
}

func applyRemovedStones(e *Engine, raw json.RawMessage) error {
	var rf removedStonesFrame
	if err := json.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("decode removed_stones: %w", err)
	}
	if !e.Loaded {
		return fmt.Errorf("removed_stones before gamedata")
	}
	if e.Removed == nil {
		e.Removed = make([][]bool, e.Height)
		for y := range e.Removed {
			e.Removed[y] = make([]bool, e.Width)
		}
	}
	for _, p := range rf.Stones {
		x, y := p[0], p[1]
		if y < 0 || y >= len(e.Removed) || x < 0 || x >= len(e.Removed[y]) {
			continue
		}
		e.Removed[y][x] = rf.Removed
	}
	return nil
}

func applyClock(e *Engine, raw json.RawMessage, now time.Time) error {
	var wc wireClock
	if err := json.Unmarshal(raw, &wc); err != nil {
		return fmt.Errorf("decode clock: %w", err)
	}
	e.Clock = decodeClock(wc, now)
	return nil
}

func decodeClock(wc wireClock, now time.Time) *Clock {
	side := func(s wireSideClock) SideClock {
		return SideClock{
			ThinkingTime: time.Duration(s.ThinkingTime * float64(time.Second)),
			Periods:      s.Periods,
			PeriodTime:   time.Duration(s.PeriodTime * float64(time.Second)),
		}
	}
	return &Clock{
		CurrentPlayer: wc.CurrentPlayer,
		Black:         side(wc.BlackTime),
		White:         side(wc.WhiteTime),
		Paused:        wc.Paused,
		ReceivedAt:    now,
	}
}

// firstToMove: with free handicap placement black plays the first
// `handicap` moves.
func firstToMove(initial string, handicap int) Stone {
	if initial == "white" && handicap <= 1 {
		return White
	}
	return Black
}

// playMove applies a move for the side to move. Negative coordinates are a pass.
func playMove(e *Engine, x, y int) {
	mover := e.toMove
	if x >= 0 && y >= 0 {
		captured, suicide, err := place(e.Board, x, y, mover)
		if err == nil {
			e.Captures[mover] += captured
			e.Captures[mover.Opponent()] += suicide
		}
	}
	e.MoveCount++
	if e.Handicap > 1 && e.MoveCount < e.Handicap {
		e.toMove = Black
		return
	}
	e.toMove = mover.Opponent()
}
