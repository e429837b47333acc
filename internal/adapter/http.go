package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/models"
)

type httpSyncAPI struct {
	client *utils.HTTPClient

	// stream has no overall timeout; Follow is bounded by its context only.
	stream *utils.HTTPClient

	logger *logger.Logger
}

// NewHTTPSyncAPI returns the HTTP implementation of [SyncAPI] for the syncd
// instance at cfg.HTTPAddress. It fails if the address cannot be turned into
// a base URL.
func NewHTTPSyncAPI(cfg config.Adapter, logger *logger.Logger) (SyncAPI, error) {
	baseURL, err := normalizeBaseURL(cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := utils.NewHTTPClient()
	client.
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout)

	stream := utils.NewHTTPClient()
	stream.SetBaseURL(baseURL)

	return &httpSyncAPI{client: client, stream: stream, logger: logger}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func (h *httpSyncAPI) Status(ctx context.Context) (models.SyncStatus, error) {
	var status models.SyncStatus

	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/api/sync/status")
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("status request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SyncStatus{}, err
	}

	return status, nil
}

func (h *httpSyncAPI) Broadcast(ctx context.Context, event models.ChangeEvent) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post("/api/sync/broadcast")
	if err != nil {
		return fmt.Errorf("broadcast request: %w", err)
	}
	return mapHTTPError(resp)
}

func (h *httpSyncAPI) Reconnect(ctx context.Context) (models.SyncStatus, error) {
	var status models.SyncStatus

	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&status).
		Post("/api/sync/reconnect")
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("reconnect request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SyncStatus{}, err
	}

	return status, nil
}

func (h *httpSyncAPI) Login(ctx context.Context, token string) (models.Identity, error) {
	var id models.Identity

	resp, err := h.client.R().
		SetContext(ctx).
		SetAuthToken(strings.TrimSpace(token)).
		SetResult(&id).
		Post("/api/session/login")
	if err != nil {
		return models.Identity{}, fmt.Errorf("login request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Identity{}, err
	}

	return id, nil
}

func (h *httpSyncAPI) Logout(ctx context.Context) error {
	resp, err := h.client.R().
		SetContext(ctx).
		Post("/api/session/logout")
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	return mapHTTPError(resp)
}

func (h *httpSyncAPI) Version(ctx context.Context) (string, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/version")
	if err != nil {
		return "", fmt.Errorf("version request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.String()), nil
}

func (h *httpSyncAPI) Follow(ctx context.Context, onStatus func(models.SyncStatus), onEvent func(models.ChangeEvent)) error {
	resp, err := h.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get("/api/sync/events")
	if err != nil {
		return fmt.Errorf("events request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 300 {
		return mapStatus(resp.StatusCode(), "")
	}

	frames := newSSEReader(body)
	for {
		frame, err := frames.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading event stream: %w", err)
			}
			break
		}
		if err = dispatchFrame(frame.Event, frame.Data, onStatus, onEvent); err != nil {
			return err
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func dispatchFrame(event, data string, onStatus func(models.SyncStatus), onEvent func(models.ChangeEvent)) error {
	switch event {
	case "status":
		var status models.SyncStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedStream, err)
		}
		if onStatus != nil {
			onStatus(status)
		}
	case "change":
		var change models.ChangeEvent
		if err := json.Unmarshal([]byte(data), &change); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedStream, err)
		}
		if onEvent != nil {
			onEvent(change)
		}
	}
	return nil
}
