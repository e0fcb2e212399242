package model

import "github.com/Laisky/errors/v2"

var (
	// ErrInvalidInput indicates a malformed or missing request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized indicates the caller identifier could not be resolved.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller does not own the note.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates no note has the given id.
	ErrNotFound = errors.New("note not found")
	// ErrAlreadyLiked is returned by the once-only like when the caller already liked the note.
	ErrAlreadyLiked = errors.New("already liked")
	// ErrUnavailable indicates the store could not serve the request.
	ErrUnavailable = errors.New("store unavailable")
)

// unavailableError keeps the store error in the chain while matching ErrUnavailable.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return ErrUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() error {
	return e.err
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Unavailable marks err as a store failure. Errors that already carry
// one of the sentinels above are returned unchanged.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrInvalidInput, ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrAlreadyLiked, ErrUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &unavailableError{err: err}
}
