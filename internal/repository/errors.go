package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors shared by repositories. Callers match them with errors.Is.
var (
	ErrDuplicate         = errors.New("duplicate key")
	ErrAlreadyReviewed   = errors.New("already reviewed")
	ErrRegionHasLead     = errors.New("region already has a team lead")
	ErrOpenChangeRequest = errors.New("user has an open change request")
	ErrStillReferenced   = errors.New("still referenced")
	ErrRoleMismatch      = errors.New("location does not match role")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation
}
