package repository

import "errors"

// ErrRecordNotFound is returned when a keyed lookup has no match.
var ErrRecordNotFound = errors.New("record not found")
