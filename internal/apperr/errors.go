package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrProtected     = errors.New("protected document")
	ErrInvalid       = errors.New("invalid document")
)
