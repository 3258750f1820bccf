package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrNotFound         = fmt.Errorf("session not found")
	ErrExpired          = fmt.Errorf("session expired")
	ErrAlreadyNotified  = fmt.Errorf("session already notified")
	ErrDeliveryFailure  = fmt.Errorf("delivery failure")
	ErrStoreUnavailable = fmt.Errorf("session store unavailable")
	ErrSessionExists    = fmt.Errorf("session already exists")
)
