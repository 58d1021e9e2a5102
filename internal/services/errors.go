package services

import "errors"

// ErrInvalidLimit is returned for a negative history limit.
var ErrInvalidLimit = errors.New("history limit must not be negative")
