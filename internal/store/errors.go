package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	ErrNoQueries      = errors.New("batch search has no queries")
)

// UnauthorizedError is returned when a user requests results of a
// batch search they do not own and that is not published.
type UnauthorizedError struct {
	SearchID  uuid.UUID
	Owner     string
	Requester string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %s requested results for batch search %s that belongs to user %s", e.Requester, e.SearchID, e.Owner)
}

// DuplicateQueryError signals corrupted storage: two query rows of the
// same batch search carry the same query key. Reconstruction aborts
// rather than dropping one of them silently.
type DuplicateQueryError struct {
	SearchID uuid.UUID
	Query    string
}

func (e *DuplicateQueryError) Error() string {
	return fmt.Sprintf("batch search %s has duplicate query key %q", e.SearchID, e.Query)
}
