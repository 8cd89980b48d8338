package gamesession

import "errors"

var (
	ErrOffBoard = errors.New("move off board")
	ErrOccupied = errors.New("intersection occupied")
)

func newBoard(w, h int) [][]Stone {
	b := make([][]Stone, h)
	for y := range b {
		b[y] = make([]Stone, w)
	}
	return b
}

// place puts c at (x,y), removes opponent groups left without liberties
// and returns the number of stones captured. Suicide removes the mover's group
// and credits the opponent.
func place(board [][]Stone, x, y int, c Stone) (captured int, suicide int, err error) {
	if y < 0 || y >= len(board) || x < 0 || x >= len(board[y]) {
		return 0, 0, ErrOffBoard
	}
	if board[y][x] != Empty {
		return 0, 0, ErrOccupied
	}
	board[y][x] = c
	opp := c.Opponent()
	for _, n := range neighbors(board, x, y) {
		if board[n[1]][n[0]] != opp {
			continue
		}
		group, libs := groupAt(board, n[0], n[1])
		if libs == 0 {
			for _, p := range group {
				board[p[1]][p[0]] = Empty
			}
			captured += len(group)
		}
	}
	if group, libs := groupAt(board, x, y); libs == 0 {
		for _, p := range group {
			board[p[1]][p[0]] = Empty
		}
		suicide = len(group)
	}
	return captured, suicide, nil
}

func neighbors(board [][]Stone, x, y int) [][2]int {
	out := make([][2]int, 0, 4)
	if x > 0 {
		out = append(out, [2]int{x - 1, y})
	}
	if x+1 < len(board[y]) {
		out = append(out, [2]int{x + 1, y})
	}
	if y > 0 {
		out = append(out, [2]int{x, y - 1})
	}
	if y+1 < len(board) {
		out = append(out, [2]int{x, y + 1})
	}
	return out
}

func groupAt(board [][]Stone, x, y int) (group [][2]int, liberties int) {
	color := board[y][x]
	seen := map[[2]int]bool{{x, y}: true}
	libSeen := map[[2]int]bool{}
	stack := [][2]int{{x, y}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		group = append(group, p)
		for _, n := range neighbors(board, p[0], p[1]) {
			switch board[n[1]][n[0]] {
			case Empty:
				libSeen[n] = true
			case color:
				if !seen[n] {
					seen[n] = true
					stack = append(stack, n)
				}
			}
		}
	}
	return group, len(libSeen)
}
