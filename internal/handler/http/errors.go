// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import "errors"

var (
	// ErrInvalidAuthorizationHeader is returned when the "Authorization"
	// header is present but is not of the form "Bearer <token>".
	ErrInvalidAuthorizationHeader = errors.New("invalid `Authorization` header")

	// ErrEmptyToken is returned when neither the "Authorization" header nor
	// the request body carries a token.
	ErrEmptyToken = errors.New("no token in `Authorization` header or request body")

	// ErrInvalidChangeEvent is returned for a broadcast body that does not
	// name a known entity type and action.
	ErrInvalidChangeEvent = errors.New("invalid change event")

	// ErrStreamingUnsupported is returned when the response writer cannot
	// flush, so server-sent events would never reach the client.
	ErrStreamingUnsupported = errors.New("streaming is not supported")
)
