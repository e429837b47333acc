// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter is the client side of the syncd HTTP API.
//
// [SyncAPI] hides the transport from syncctl. Non-2xx responses are mapped
// to the sentinel errors in errors.go, so callers can use [errors.Is]
// without looking at status codes (e.g. [ErrUnauthorized] for 401).
package adapter

//go:generate mockgen -source=interfaces.go -destination=../mock/sync_api_mock.go -package=mock

import (
	"context"

	"github.com/MKhiriev/tabsync/models"
)

// SyncAPI drives a remote sync session.
type SyncAPI interface {
	// Status returns the session's current status.
	Status(ctx context.Context) (models.SyncStatus, error)

	// Follow streams delivered change events to onEvent until ctx is done or
	// the server ends the stream. The initial status frame is passed to
	// onStatus.
	Follow(ctx context.Context, onStatus func(models.SyncStatus), onEvent func(models.ChangeEvent)) error

	// Broadcast sends event to the other tabs of the session.
	Broadcast(ctx context.Context, event models.ChangeEvent) error

	// Reconnect restarts the change-feed subscriptions and returns the
	// resulting status.
	Reconnect(ctx context.Context) (models.SyncStatus, error)

	// Login authenticates the session with a bearer token.
	Login(ctx context.Context, token string) (models.Identity, error)

	// Logout clears the session identity.
	Logout(ctx context.Context) error

	// Version returns the server version string.
	Version(ctx context.Context) (string, error)
}
