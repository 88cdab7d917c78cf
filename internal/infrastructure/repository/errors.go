package repository

import (
	domainErrors "github.com/abhinavece/player-auction-backend/internal/domain/errors"
)

// Write failures are reported through the shared AppError taxonomy so the
// arbiter and coordinator can branch on kind without string matching.

func errNotFound(resource string) error {
	return domainErrors.NewNotFoundError(resource)
}

func errStaleVersion(resource string) error {
	return domainErrors.NewStateConflictError("STALE_VERSION", resource+" was modified concurrently")
}

func errConstraintViolation(message string) error {
	return domainErrors.NewStateConflictError("CONSTRAINT_VIOLATION", message)
}

func errDuplicate(resource string) error {
	return domainErrors.NewStateConflictError("DUPLICATE", resource+" already exists")
}

func errTransient(err error) error {
	return domainErrors.NewTransientError("persistence unavailable").WithCause(err)
}
