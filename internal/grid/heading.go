package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidHeading is returned when a heading is not one of N, E, S, W.
var ErrInvalidHeading = errors.New("invalid heading")

// Heading is the direction the robot faces.
type Heading byte

// Headings in clockwise order. The order defines rotation.
const (
	North Heading = 'N'
	East  Heading = 'E'
	South Heading = 'S'
	West  Heading = 'W'
)

var compass = [4]Heading{North, East, South, West}

// Turn is a rotation direction.
type Turn byte

const (
	Left  Turn = 'L'
	Right Turn = 'R'
)

// ParseHeading parses a single-letter heading.
func ParseHeading(s string) (Heading, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHeading, s)
	}
	h := Heading(s[0])
	if !h.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHeading, s)
	}
	return h, nil
}

// Valid reports whether h is one of the four compass headings.
func (h Heading) Valid() bool {
	return h.index() >= 0
}

func (h Heading) String() string {
	return string(h)
}

// MarshalText implements encoding.TextMarshaler.
func (h Heading) MarshalText() ([]byte, error) {
	return []byte{byte(h)}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Heading) UnmarshalText(text []byte) error {
	parsed, err := ParseHeading(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Rotate returns the heading after turning once in the given direction.
// Any turn other than Right is treated as Left.
func (h Heading) Rotate(t Turn) Heading {
	i := h.index()
	if i < 0 {
		return h
	}
	if t == Right {
		return compass[(i+1)%len(compass)]
	}
	return compass[(i+len(compass)-1)%len(compass)]
}

// offset returns the single-cell translation for moving forward.
func (h Heading) offset() (dx, dy int) {
	switch h {
	case North:
		return 0, 1
	case East:
		return 1, 0
	case South:
		return 0, -1
	case West:
		return -1, 0
	}
	return 0, 0
}

func (h Heading) index() int {
	for i, c := range compass {
		if c == h {
			return i
		}
	}
	return -1
}
