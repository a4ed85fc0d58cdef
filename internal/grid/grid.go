package grid

import (
	"fmt"
	"strings"
)

// Position is the robot's location and heading.
type Position struct {
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Heading Heading `json:"heading"`
}

// String renders the position as "x y o".
func (p Position) String() string {
	return fmt.Sprintf("%d %d %s", p.X, p.Y, p.Heading)
}

// LostError reports a placement or move that would leave the grid.
// Losing the robot is a normal outcome, not a failure of the grid.
type LostError struct {
	Attempted Position
}

func (e *LostError) Error() string {
	return e.Attempted.String() + " LOST"
}

// Grid is a fixed-size rectangle holding a single robot.
type Grid struct {
	width    int
	height   int
	robot    Position
	occupied [][]bool // [y][x]
}

// New creates a grid with the robot at (0, 0) facing north.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", width, height)
	}

	occupied := make([][]bool, height)
	for y := range occupied {
		occupied[y] = make([]bool, width)
	}

	g := &Grid{
		width:    width,
		height:   height,
		robot:    Position{X: 0, Y: 0, Heading: North},
		occupied: occupied,
	}
	g.occupied[0][0] = true
	return g, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Robot returns the robot's stored position.
func (g *Grid) Robot() Position { return g.robot }

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Place moves the robot to (x, y) facing h.
//
// Off-grid coordinates return a *LostError carrying the attempted position;
// the stored position is left untouched.
func (g *Grid) Place(x, y int, h Heading) (Position, error) {
	if !h.Valid() {
		return g.robot, fmt.Errorf("%w: %q", ErrInvalidHeading, string(h))
	}

	next := Position{X: x, Y: y, Heading: h}
	if !g.InBounds(x, y) {
		return next, &LostError{Attempted: next}
	}

	g.occupied[g.robot.Y][g.robot.X] = false
	g.occupied[y][x] = true
	g.robot = next
	return next, nil
}

// Occupied reports whether the cell holds the robot.
func (g *Grid) Occupied(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	return g.occupied[y][x]
}

// Render draws the grid with the top row first. The robot cell shows as R.
func (g *Grid) Render() string {
	var b strings.Builder
	for y := g.height - 1; y >= 0; y-- {
		for x := 0; x < g.width; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			if g.occupied[y][x] {
				b.WriteByte('R')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
