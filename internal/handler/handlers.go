package handler

import (
	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/handler/http"
	"github.com/MKhiriev/tabsync/internal/logger"
)

type Handlers struct {
	HTTP *http.Handler
}

func NewHandlers(deps http.Dependencies, cfg config.Server, logger *logger.Logger) (*Handlers, error) {
	logger.Info().Msg("creating new handlers...")

	if cfg.HTTPAddress == "" {
		return nil, errNoHandlersAreCreated
	}
	if deps.Session == nil || deps.Auth == nil {
		return nil, errNoSession
	}

	if deps.RequestTimeout == 0 {
		deps.RequestTimeout = cfg.RequestTimeout
	}

	return &Handlers{HTTP: http.NewHandler(deps, logger)}, nil
}
