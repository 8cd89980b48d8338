package linesummary

import "fmt"

// User is a participant as the game list knows it.
type User struct {
	ID           int64
	Username     string
	Ranking      *int // 0 is 30k, 30 is 1d, 37 is 1p
	Professional bool
}

// Teams holds rengo rosters per side.
type Teams struct {
	Black []User
	White []User
}

// Color is the side a viewer plays. The zero value means undetermined.
type Color string

const (
	ColorBlack        Color = "black"
	ColorWhite        Color = "white"
	ColorUndetermined Color = ""
)

func (c Color) Opponent() Color {
	if c == ColorBlack {
		return ColorWhite
	}
	return ColorBlack
}

// ResolveColor matches the viewer against the principals first, then the
// black roster, then the white roster.
func ResolveColor(viewer *User, black, white User, teams *Teams) Color {
	if viewer == nil {
		return ColorUndetermined
	}
	switch viewer.ID {
	case black.ID:
		return ColorBlack
	case white.ID:
		return ColorWhite
	}
	if teams == nil {
		return ColorUndetermined
	}
	if containsUser(teams.Black, viewer.ID) {
		return ColorBlack
	}
	if containsUser(teams.White, viewer.ID) {
		return ColorWhite
	}
	return ColorUndetermined
}

func containsUser(us []User, id int64) bool {
	for _, u := range us {
		if u.ID == id {
			return true
		}
	}
	return false
}

func rankString(u User) string {
	if u.Ranking == nil {
		return "?"
	}
	r := *u.Ranking
	switch {
	case u.Professional:
		return fmt.Sprintf("%dp", max(1, r-36))
	case r < 30:
		return fmt.Sprintf("%dk", 30-r)
	default:
		return fmt.Sprintf("%dd", r-29)
	}
}

func displayName(u User, withRank bool) string {
	if !withRank {
		return u.Username
	}
	return u.Username + " [" + rankString(u) + "]"
}
