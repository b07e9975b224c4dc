// Package repository implements the user, product and order stores on ScyllaDB.
package repository

import (
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"shopfront_back_end/internal/apperr"
)

// parseID turns a client supplied id into a UUID. Malformed ids cannot
// match a row, so they are reported as not found.
func parseID(kind, id string) (gocql.UUID, error) {
	u, err := gocql.ParseUUID(id)
	if err != nil {
		return gocql.UUID{}, fmt.Errorf("%s %q: %w", kind, id, apperr.ErrNotFound)
	}
	return u, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
