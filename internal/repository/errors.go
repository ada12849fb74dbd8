package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation reports whether the error is a Postgres unique-key
// violation, the last line of defense behind service-level existence checks.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
