package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/tabsync/internal/identity"
)

var errorStatusMap = map[error]int{
	ErrInvalidAuthorizationHeader: http.StatusBadRequest,
	ErrEmptyToken:                 http.StatusBadRequest,
	ErrInvalidChangeEvent:         http.StatusBadRequest,
	ErrStreamingUnsupported:       http.StatusInternalServerError,

	identity.ErrEmptyToken:     http.StatusBadRequest,
	identity.ErrInvalidToken:   http.StatusUnauthorized,
	identity.ErrTokenIsExpired: http.StatusUnauthorized,
	identity.ErrNoSubject:      http.StatusUnauthorized,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
