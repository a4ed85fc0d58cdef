package instruction

import "errors"

// Parse errors. All are reported to callers as result strings.
var (
	ErrInvalidCoordinate   = errors.New("invalid coordinate")
	ErrInvalidOrientation  = errors.New("invalid orientation")
	ErrMissingArguments    = errors.New("missing arguments")
	ErrTooManyInstructions = errors.New("too many instructions")
	ErrInvalidStep         = errors.New("invalid step")
	ErrMalformedInput      = errors.New("malformed input")
)
