package progression

import "errors"

var (
	ErrUnknownField  = errors.New("unknown accumulable field")
	ErrEmptyDeltas   = errors.New("no deltas given")
	ErrInvalidBound  = errors.New("invalid bound")
	ErrInvalidNumber = errors.New("invalid number")
	ErrUnknownKind   = errors.New("unknown entity kind")
)
