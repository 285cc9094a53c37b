package service

import "errors"

// Sentinel errors returned by services. Handlers map them to HTTP statuses
// with errors.Is; wrapped messages are safe to show to the caller.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrCostLimitExceeded    = errors.New("daily cost limit exceeded")
	ErrConflict             = errors.New("conflict")
	ErrUnavailable          = errors.New("feature unavailable")
	ErrStorage              = errors.New("storage failure")
	ErrPersist              = errors.New("failed to save vibelog")
)
