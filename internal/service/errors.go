package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCanvasNotFound       = errors.New("canvas not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrInternalServer       = errors.New("internal server error")
)
