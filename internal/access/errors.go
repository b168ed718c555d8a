package access

import "errors"

var (
	ErrNotFound         = errors.New("access: not found")
	ErrInvalidInput     = errors.New("access: invalid input")
	ErrUnauthorized     = errors.New("access: unauthorized")
	ErrForbidden        = errors.New("access: forbidden")
	ErrStoreUnavailable = errors.New("access: credential store unavailable")
)
