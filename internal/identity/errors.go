package identity

import "errors"

var (
	ErrEmptyToken     = errors.New("empty token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenIsExpired = errors.New("token is expired")
	ErrNoSubject      = errors.New("token has no subject")
	ErrNoSignKey      = errors.New("no token sign key configured")
)
