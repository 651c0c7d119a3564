package review

import "errors"

var (
	// ErrInvalidInput marks a request the caller must fix before retrying.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEditConflict is returned when the supplied expected version no
	// longer matches the stored row. Never conflated with ErrNotFound.
	ErrEditConflict = errors.New("edit conflict")

	// ErrDuplicate is returned when a create collides with a uniqueness
	// constraint, e.g. a user email already on file.
	ErrDuplicate = errors.New("duplicate record")

	// ErrNoUpdates is returned when a sparse update carries no fields.
	ErrNoUpdates = errors.New("no updates supplied")

	// ErrAlreadyProcessed reports an idempotent replay: the (subject, key)
	// pair was already consumed by a successful mutation.
	ErrAlreadyProcessed = errors.New("request already processed")
)
