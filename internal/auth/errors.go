package auth

import "errors"

var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrMisconfigured     = errors.New("auth config invalid")
)
