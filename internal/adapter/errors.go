package adapter

import "errors"

var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInternalServerError = errors.New("internal server error")
	ErrUnavailable         = errors.New("server unavailable")

	// ErrMalformedStream is returned by Follow for a frame that cannot be decoded.
	ErrMalformedStream = errors.New("malformed event stream")
)
