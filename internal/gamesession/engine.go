package gamesession

import "time"

// Stone is the content of one intersection.
type Stone int8

const (
	Empty Stone = iota
	Black
	White
)

func (s Stone) Opponent() Stone {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

func (s Stone) String() string {
	switch s {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return ""
	}
}

const (
	PhasePlay         = "play"
	PhaseStoneRemoval = "stone removal"
	PhaseFinished     = "finished"
)

type Player struct {
	ID       int64
	Username string
}

// PlayerScore mirrors the per-side breakdown the game engine reports.
type PlayerScore struct {
	Prisoners int
	Komi      float64
	Territory int
	Stones    int
}

func (p PlayerScore) Total() float64 {
	return float64(p.Prisoners+p.Territory+p.Stones) + p.Komi
}

type Score struct {
	Black PlayerScore
	White PlayerScore
}

// SideClock is the remaining time for one color.
type SideClock struct {
	ThinkingTime time.Duration
	Periods      int
	PeriodTime   time.Duration
}

type Clock struct {
	CurrentPlayer int64
	Black         SideClock
	White         SideClock
	Paused        bool
	ReceivedAt    time.Time
}

// Engine is a point-in-time snapshot of a live game.
type Engine struct {
	GameID     int64
	GameName   string
	Phase      string
	Width      int
	Height     int
	Komi       float64
	Handicap   int
	MoveCount  int
	Players    [3]Player // indexed by Stone
	Board      [][]Stone
	Removed    [][]bool // dead stones marked during stone removal
	Captures   [3]int   // stones captured BY the indexed color
	FinalScore *Score
	Clock      *Clock
	Loaded     bool
	toMove     Stone
}

// GetMoveNumber returns the number of moves played so far.
func (e Engine) GetMoveNumber() int { return e.MoveCount }

// PlayerToMove returns the id of the player whose turn it is, 0 when the game is not in play.
func (e Engine) PlayerToMove() int64 {
	if !e.Loaded || e.Phase == PhaseFinished {
		return 0
	}
	return e.Players[e.toMove].ID
}

// ColorToMove returns the color whose turn it is.
func (e Engine) ColorToMove() Stone { return e.toMove }

// ComputeScore returns the per-side score. With onlyPrisoners set the
// territory and stone counts are left at zero.
func (e Engine) ComputeScore(onlyPrisoners bool) Score {
	s := Score{
		Black: PlayerScore{Prisoners: e.Captures[Black]},
		White: PlayerScore{Prisoners: e.Captures[White], Komi: e.Komi},
	}
	if !onlyPrisoners && e.FinalScore != nil {
		s.Black.Territory, s.Black.Stones = e.FinalScore.Black.Territory, e.FinalScore.Black.Stones
		s.White.Territory, s.White.Stones = e.FinalScore.White.Territory, e.FinalScore.White.Stones
	}
	return s
}

func (e Engine) clone() Engine {
	out := e
	if e.Board != nil {
		out.Board = make([][]Stone, len(e.Board))
		for y := range e.Board {
			out.Board[y] = append([]Stone(nil), e.Board[y]...)
		}
	}
	if e.Removed != nil {
		out.Removed = make([][]bool, len(e.Removed))
		for y := range e.Removed {
			out.Removed[y] = append([]bool(nil), e.Removed[y]...)
		}
	}
	if e.Clock != nil {
		c := *e.Clock
		out.Clock = &c
	}
	if e.FinalScore != nil {
		fs := *e.FinalScore
		out.FinalScore = &fs
	}
	return out
}
