package domain

import "errors"

var ErrValidation = errors.New("invalid order payload")

// Send outcomes. Callers tell them apart with errors.Is.
var (
	ErrNotReady         = errors.New("messaging session not ready")
	ErrTransportFailure = errors.New("messaging transport failure")
	ErrAuthFailure      = errors.New("messaging session authentication failed")
)

var (
	ErrInvalidJob        = errors.New("invalid notification job")
	ErrQueueFull         = errors.New("dispatch queue is full")
	ErrJobNotFound       = errors.New("notification job not found")
	ErrInvalidTransition = errors.New("invalid job state transition")
)
