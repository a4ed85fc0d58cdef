package grid

import "fmt"

// Action is a single movement step.
type Action byte

const (
	TurnLeft  Action = 'L'
	TurnRight Action = 'R'
	Forward   Action = 'F'
)

// ParseAction validates a movement letter.
func ParseAction(r rune) (Action, bool) {
	switch r {
	case 'L':
		return TurnLeft, true
	case 'R':
		return TurnRight, true
	case 'F':
		return Forward, true
	}
	return 0, false
}

func (a Action) String() string {
	return string(a)
}

// Engine applies movement steps to a grid.
type Engine struct {
	grid *Grid
}

// NewEngine returns an engine acting on g.
func NewEngine(g *Grid) *Engine {
	return &Engine{grid: g}
}

// Step applies one action.
//
// Turns never fail. Forward delegates to Grid.Place, so a move off the grid
// returns a *LostError and leaves the robot where it was.
func (e *Engine) Step(a Action) (Position, error) {
	cur := e.grid.Robot()

	switch a {
	case TurnLeft:
		return e.turn(cur, Left)
	case TurnRight:
		return e.turn(cur, Right)
	case Forward:
		dx, dy := cur.Heading.offset()
		return e.grid.Place(cur.X+dx, cur.Y+dy, cur.Heading)
	}
	return cur, fmt.Errorf("unknown action %q", byte(a))
}

func (e *Engine) turn(cur Position, t Turn) (Position, error) {
	return e.grid.Place(cur.X, cur.Y, cur.Heading.Rotate(t))
}
