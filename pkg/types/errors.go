package types

import "errors"

// Domain errors for record validation
var (
	ErrEmptyName       = errors.New("name is required")
	ErrInvalidLines    = errors.New("line numbers must be positive and ordered")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidMatch    = errors.New("invalid match type")
	ErrMissingLanguage = errors.New("language is required")
)
