package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrImageRequired    = errors.New("image is required")
)
