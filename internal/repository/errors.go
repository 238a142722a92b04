package repository

import "errors"

// ErrNotFound is returned when a tenant-scoped lookup matches no row.
var ErrNotFound = errors.New("not found")
