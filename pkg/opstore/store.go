// Package opstore is the postgres persistence layer for operations.
package opstore

import "errors"

var ErrOperationNotFound = errors.New("operation not found")
