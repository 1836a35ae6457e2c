package repositories

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing record from repositories that are not backed by Firestore.
type NotFoundError struct {
	Resource string
	ID       string
}

var _ RepositoryError = (*NotFoundError)(nil)

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) IsNotFound() bool    { return true }
func (e *NotFoundError) IsConflict() bool    { return false }
func (e *NotFoundError) IsUnavailable() bool { return false }

// IsNotFound reports whether err carries a not-found repository classification.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsUnavailable reports whether err carries a transient backend classification.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
