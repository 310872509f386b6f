package service

import "errors"

// ErrInvalidTransition for state-machine rejections lives in the state
// package next to the machines themselves; handlers match both.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrAlreadyCollected is the expected outcome of two collectors racing
	// for the same point. Callers treat it as non-fatal.
	ErrAlreadyCollected = errors.New("point already collected")
)
