package arena

import "errors"

var (
	ErrEngineClosed    = errors.New("engine is closed")
	ErrMatchNotFound   = errors.New("match not found")
	ErrDuplicateMatch  = errors.New("match id already in use")
	ErrInvalidConfig   = errors.New("invalid match config")
	ErrUnknownStrategy = errors.New("unknown strategy")
)
