package service

import "errors"

var (
	ErrMissingCredentials       = errors.New("email and password required")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrMissingToken             = errors.New("missing token")
	ErrInvalidToken             = errors.New("invalid or expired token")
	ErrAdminNotFound            = errors.New("admin not found")
	ErrCurrentPasswordRequired  = errors.New("current password is required to update credentials")
	ErrNothingToUpdate          = errors.New("provide at least email or password to update")
	ErrCurrentPasswordIncorrect = errors.New("current password incorrect")
	ErrEmailConflict            = errors.New("email already in use")
	ErrPasswordTooLong          = errors.New("password must be at most 72 bytes")
)
