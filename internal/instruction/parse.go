package instruction

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/fyrsmithlabs/gridwalker/internal/grid"
)

// MaxSequenceLength caps the characters in one movement instruction.
const MaxSequenceLength = 100

// Placement is a validated "c x y o" instruction.
type Placement struct {
	X       int
	Y       int
	Heading grid.Heading
}

// Step is one character of a movement sequence. Err is set when the
// character is not a valid action; the rest of the sequence still applies.
type Step struct {
	Raw    rune
	Action grid.Action
	Err    error
}

// Sequence is an ordered list of movement steps.
type Sequence []Step

// ParsePlacement parses the x, y and heading tokens of a placement.
//
// The coordinates must be base-10 integers. Range is not checked here; an
// off-grid placement is a LOST outcome, not a parse error. Only the first
// character of the heading token is significant.
func ParsePlacement(tokens []string) (Placement, error) {
	if len(tokens) != 3 {
		return Placement{}, fmt.Errorf("%w: want x y orientation, got %d argument(s)", ErrMissingArguments, len(tokens))
	}

	x, err := parseCoordinate(tokens[0])
	if err != nil {
		return Placement{}, err
	}
	y, err := parseCoordinate(tokens[1])
	if err != nil {
		return Placement{}, err
	}

	first, _ := utf8.DecodeRuneInString(tokens[2])
	h, err := grid.ParseHeading(string(first))
	if err != nil {
		return Placement{}, fmt.Errorf("%w: %q", ErrInvalidOrientation, tokens[2])
	}

	return Placement{X: x, Y: y, Heading: h}, nil
}

func parseCoordinate(tok string) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, tok)
	}
	return n, nil
}

// ParseMovementSequence parses a single movement token such as "RFRFL".
//
// Characters outside L, R, F produce a Step with Err set instead of failing
// the whole sequence.
func ParseMovementSequence(tokens []string) (Sequence, error) {
	if len(tokens) != 1 {
		return nil, fmt.Errorf("%w: want one movement string, got %d argument(s)", ErrMissingArguments, len(tokens))
	}

	raw := tokens[0]
	if n := utf8.RuneCountInString(raw); n > MaxSequenceLength {
		return nil, fmt.Errorf("%w: %d characters (max %d)", ErrTooManyInstructions, n, MaxSequenceLength)
	}

	seq := make(Sequence, 0, len(raw))
	for _, r := range raw {
		a, ok := grid.ParseAction(r)
		if !ok {
			seq = append(seq, Step{Raw: r, Err: fmt.Errorf("%w: %q", ErrInvalidStep, string(r))})
			continue
		}
		seq = append(seq, Step{Raw: r, Action: a})
	}
	return seq, nil
}
