package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/models"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	token, err := tokenFromRequest(r)
	if err != nil {
		log.Err(err).Msg("no usable token in login request")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	id, err := h.auth.Login(token)
	if err != nil {
		log.Err(err).Msg("login failed")
		http.Error(w, http.StatusText(statusFromError(err)), statusFromError(err))
		return
	}

	log.Info().Str("user_id", id.UserID).Msg("session logged in")

	if _, err = utils.WriteJSON(w, id, http.StatusOK); err != nil {
		log.Err(err).Msg("writing identity failed")
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout()
	logger.FromRequest(r).Info().Msg("session logged out")

	w.WriteHeader(http.StatusNoContent)
}

// tokenFromRequest reads the bearer token from the Authorization header or,
// when the header is absent, from a JSON [models.LoginRequest] body.
func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, err := utils.ParseBearerToken(header)
		if err != nil {
			return "", ErrInvalidAuthorizationHeader
		}
		return token, nil
	}

	var body models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return "", ErrEmptyToken
	}
	if body.Token == "" {
		return "", ErrEmptyToken
	}
	return body.Token, nil
}
