package sqlite

import (
	"strings"

	"github.com/baton-dev/baton/internal/repository"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storageErr wraps an unexpected driver failure, scoped to the operation.
func storageErr(op string, err error) error {
	return &repository.StorageError{Op: op, Err: err}
}
